package xsdrt

import "strings"

// ProcessContents defines how wildcard content is processed
type ProcessContents string

const (
	// StrictProcess requires a global declaration for the matched element
	StrictProcess ProcessContents = "strict"
	// LaxProcess accepts the element whether or not a declaration exists
	LaxProcess ProcessContents = "lax"
	// SkipProcess accepts the element without looking for a declaration
	SkipProcess ProcessContents = "skip"
)

// Wildcard is an xs:any or xs:anyAttribute namespace constraint.
type Wildcard struct {
	// Namespace is "##any", "##other", or a list of namespace URIs and
	// the tokens "##targetNamespace" and "##local".
	Namespace string
	// Target is the target namespace of the schema document that
	// declared the wildcard.
	Target  string
	Process ProcessContents
}

// NewWildcard builds a wildcard from the namespace and processContents
// attribute values, applying their defaults.
func NewWildcard(namespace, process, target string) *Wildcard {
	namespace = strings.Join(strings.Fields(namespace), " ")
	if namespace == "" {
		namespace = "##any"
	}
	if process == "" {
		process = string(StrictProcess)
	}
	return &Wildcard{Namespace: namespace, Target: target, Process: ProcessContents(process)}
}

// Matches checks if a namespace matches this constraint
func (w *Wildcard) Matches(namespace string) bool {
	switch w.Namespace {
	case "", "##any":
		return true
	case "##other":
		return namespace != w.Target && namespace != ""
	}
	for _, ns := range strings.Fields(w.Namespace) {
		switch ns {
		case "##targetNamespace":
			if namespace == w.Target {
				return true
			}
		case "##local":
			if namespace == "" {
				return true
			}
		default:
			if ns == namespace {
				return true
			}
		}
	}
	return false
}

// Valid reports whether the constraint and process mode are well formed.
func (w *Wildcard) Valid() bool {
	switch w.Process {
	case StrictProcess, LaxProcess, SkipProcess:
	default:
		return false
	}
	if w.Namespace == "##any" || w.Namespace == "##other" {
		return true
	}
	for _, ns := range strings.Fields(w.Namespace) {
		if strings.HasPrefix(ns, "##") && ns != "##targetNamespace" && ns != "##local" {
			return false
		}
	}
	return true
}
