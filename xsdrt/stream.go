package xsdrt

// EventKind identifies a Stream event.
type EventKind uint8

const (
	StartElement EventKind = iota + 1
	CharData
	EndElement
	EndDocument
)

func (k EventKind) String() string {
	switch k {
	case StartElement:
		return "start element"
	case CharData:
		return "character data"
	case EndElement:
		return "end element"
	case EndDocument:
		return "end of document"
	default:
		return "unknown event"
	}
}

// Event is one step of a document walk. Node is set for element events.
type Event struct {
	Kind EventKind
	Node *Node
	Text string
}

// Stream presents a Node tree as a flat sequence of events with one
// event of lookahead.
type Stream struct {
	events []Event
	pos    int
}

// NewStream flattens the tree rooted at root.
func NewStream(root *Node) *Stream {
	s := &Stream{}
	s.flatten(root)
	s.events = append(s.events, Event{Kind: EndDocument})
	return s
}

func (s *Stream) flatten(n *Node) {
	s.events = append(s.events, Event{Kind: StartElement, Node: n})
	for _, c := range n.Children {
		if c.Elem != nil {
			s.flatten(c.Elem)
			continue
		}
		s.events = append(s.events, Event{Kind: CharData, Node: n, Text: c.Text})
	}
	s.events = append(s.events, Event{Kind: EndElement, Node: n})
}

// Peek returns the next event without consuming it.
func (s *Stream) Peek() Event {
	return s.events[s.pos]
}

// Next consumes and returns the next event. EndDocument is sticky.
func (s *Stream) Next() Event {
	ev := s.events[s.pos]
	if ev.Kind != EndDocument {
		s.pos++
	}
	return ev
}

// Skip consumes the remainder of the element whose start event was just
// returned by Next, including its end event.
func (s *Stream) Skip() {
	depth := 1
	for depth > 0 {
		switch s.Next().Kind {
		case StartElement:
			depth++
		case EndElement:
			depth--
		case EndDocument:
			return
		}
	}
}
