package xsdgen

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func file(src string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(src)}
}

const xsHeader = `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"`

func locations(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Location
	}
	return out
}

func TestLoaderFollowsReferences(t *testing.T) {
	fsys := fstest.MapFS{
		"schemas/main.xsd": file(xsHeader + ` targetNamespace="http://example.com">
			<xs:include schemaLocation="common.xsd"/>
			<xs:import namespace="urn:other" schemaLocation="other/other.xsd"/>
		</xs:schema>`),
		"schemas/common.xsd": file(xsHeader + `>
			<xs:simpleType name="code"><xs:restriction base="xs:string"/></xs:simpleType>
		</xs:schema>`),
		"schemas/other/other.xsd": file(xsHeader + ` targetNamespace="urn:other">
			<xs:include schemaLocation="types.xsd"/>
			<xs:import namespace="http://example.com" schemaLocation="../main.xsd"/>
		</xs:schema>`),
		"schemas/other/types.xsd": file(xsHeader + ` targetNamespace="urn:other"/>`),
	}

	l := &Loader{FS: fsys, Parallelism: 2}
	docs, err := l.Load(context.Background(), "schemas/main.xsd")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"schemas/main.xsd",
		"schemas/common.xsd",
		"schemas/other/other.xsd",
		"schemas/other/types.xsd",
	}, locations(docs))

	assert.Equal(t, "http://example.com", docs[1].Namespace, "chameleon include adopts the includer's namespace")
	assert.Equal(t, "", docs[2].Namespace)
	assert.Equal(t, "urn:other", docs[3].Namespace)

	g, err := BuildGraph(docs, nil, nil)
	require.NoError(t, err)
	_, ok := g.Type(ex("code"))
	assert.True(t, ok)
}

func TestLoaderDeduplicates(t *testing.T) {
	fsys := fstest.MapFS{
		"main.xsd": file(xsHeader + ` targetNamespace="http://example.com">
			<xs:include schemaLocation="a.xsd"/>
			<xs:include schemaLocation="./b.xsd"/>
		</xs:schema>`),
		"a.xsd": file(xsHeader + ` targetNamespace="http://example.com"><xs:include schemaLocation="c.xsd"/></xs:schema>`),
		"b.xsd": file(xsHeader + ` targetNamespace="http://example.com"><xs:include schemaLocation="c.xsd"/></xs:schema>`),
		"c.xsd": file(xsHeader + ` targetNamespace="http://example.com"/>`),
	}
	docs, err := (&Loader{FS: fsys}).Load(context.Background(), "main.xsd", "./main.xsd", "a.xsd")
	require.NoError(t, err)
	assert.Equal(t, []string{"main.xsd", "a.xsd", "b.xsd", "c.xsd"}, locations(docs))
}

func TestLoaderImportFailureWarns(t *testing.T) {
	fsys := fstest.MapFS{
		"main.xsd": file(xsHeader + ` targetNamespace="http://example.com">
			<xs:import namespace="urn:missing" schemaLocation="missing.xsd"/>
		</xs:schema>`),
	}
	logger, logs := captureLogger()
	docs, err := (&Loader{FS: fsys, Logger: logger}).Load(context.Background(), "main.xsd")
	require.NoError(t, err)
	assert.Equal(t, []string{"main.xsd"}, locations(docs))
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "failed to import schema")
	assert.Contains(t, logs.String(), "location=missing.xsd")
}

func TestLoaderErrors(t *testing.T) {
	fsys := fstest.MapFS{
		"include-missing.xsd": file(xsHeader + `><xs:include schemaLocation="nowhere.xsd"/></xs:schema>`),
		"mismatch.xsd": file(xsHeader + ` targetNamespace="http://example.com">
			<xs:include schemaLocation="foreign.xsd"/>
		</xs:schema>`),
		"foreign.xsd":   file(xsHeader + ` targetNamespace="urn:foreign"/>`),
		"malformed.xsd": file(xsHeader + `>`),
	}
	l := &Loader{FS: fsys}

	_, err := l.Load(context.Background(), "include-missing.xsd")
	var ingest *IngestError
	require.ErrorAs(t, err, &ingest)
	assert.Equal(t, "nowhere.xsd", ingest.Location)
	assert.Equal(t, "failed to read schema", ingest.Construct)

	_, err = l.Load(context.Background(), "mismatch.xsd")
	require.ErrorAs(t, err, &ingest)
	assert.Equal(t, "include foreign.xsd", ingest.Construct)
	assert.Equal(t, "mismatch.xsd", ingest.Position.File)
	assert.Equal(t, 2, ingest.Position.Line)
	assert.Contains(t, err.Error(), `included target namespace "urn:foreign" differs from "http://example.com"`)

	_, err = l.Load(context.Background(), "malformed.xsd")
	require.ErrorAs(t, err, &ingest)
	assert.Equal(t, "failed to parse schema", ingest.Construct)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Load(ctx, "foreign.xsd")
	assert.ErrorIs(t, err, context.Canceled)
}
