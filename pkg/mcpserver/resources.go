package mcpserver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	helloHelperURI  = "hello://helper"
	docOverviewURI  = "resource://docs/overview.md"
	docWorkflowsURI = "resource://docs/workflows.md"
)

func defaultServerInstructions(cfg Config) string {
	return strings.TrimSpace(fmt.Sprintf(`
helper MCP operating manual:
- Backend data service: %s
- table.generate builds a small random table inline; no backend call, no storage.
- csv.create_random asks the backend to generate a CSV and store it; the result carries an s3://bucket/key URL.
- csv.preview and csv.query take that URL back. Preview returns the header plus the first N rows; query runs a single SELECT against the CSV loaded as table df.
- file.upload reads a local file path and uploads it to backend storage.
- Object URLs must look like s3://bucket/key; anything else is rejected before the network is touched.
- Documentation resources: %s, %s
`, cfg.BackendURL, docOverviewURI, docWorkflowsURI))
}

func (s *server) registerResources(srv *mcpsdk.Server) {
	for _, uri := range s.resourceURIs() {
		mime := "text/markdown"
		if uri == helloHelperURI {
			mime = "text/plain"
		}
		srv.AddResource(&mcpsdk.Resource{
			URI:         uri,
			Name:        uri,
			Title:       uri,
			Description: "helper MCP documentation",
			MIMEType:    mime,
		}, s.handleDocResource)
	}
}

func (s *server) resourceURIs() []string {
	docs := s.resourceDocs()
	uris := make([]string, 0, len(docs))
	for uri := range docs {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}

func (s *server) resourceDocs() map[string]string {
	return map[string]string{
		helloHelperURI: "Hello from the helper MCP server! Call table.generate to build a sample table, or csv.create_random to store one.",
		docOverviewURI: strings.TrimSpace(fmt.Sprintf(`
# helper MCP Overview

The helper exposes two kinds of tools:

1. Local: table.generate builds a random data table in-process and returns
   it inline. The first column, and any column named id/index/row, holds
   1-based row numbers; every other column holds uniform random values
   rounded to two decimals.
2. Backend-backed: csv.create_random, csv.preview, csv.query and
   file.upload call the backend data service at %s. Stored objects are
   addressed by s3://bucket/key URLs.

Generation limits: at most 10000 rows and 64 columns per table.
Preview returns at most 1000 rows. Queries accept a single SELECT
statement over a table named df.
`, s.cfg.BackendURL)),
		docWorkflowsURI: strings.TrimSpace(`
# helper MCP Workflows

Typical CSV session:

1. csv.create_random with num_rows and columns. Keep the returned url.
2. csv.preview with that url to sanity-check the header and first rows.
3. csv.query with the url and a SELECT over table df, for example:
   SELECT COUNT(*) AS n FROM df
   SELECT * FROM df WHERE "Value A" > 50 LIMIT 10

Uploading local files:

1. file.upload with an absolute path. Missing paths fail with
   file_not_found before any network call.
2. The response url can be handed to csv.preview / csv.query when the
   file is a CSV.
`),
	}
}

func (s *server) handleDocResource(_ context.Context, req *mcpsdk.ReadResourceRequest) (*mcpsdk.ReadResourceResult, error) {
	uri := ""
	if req != nil && req.Params != nil {
		uri = strings.TrimSpace(req.Params.URI)
	}
	docs := s.resourceDocs()
	content, ok := docs[uri]
	if !ok {
		return nil, mcpsdk.ResourceNotFoundError(uri)
	}
	mime := "text/markdown"
	if uri == helloHelperURI {
		mime = "text/plain"
	}
	return &mcpsdk.ReadResourceResult{
		Contents: []*mcpsdk.ResourceContents{{
			URI:      uri,
			MIMEType: mime,
			Text:     content,
		}},
	}, nil
}
