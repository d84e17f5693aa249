// Package mcpserver exposes a session to MCP clients over stdio.
package mcpserver

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"qahub/internal/domain"
)

const Version = "0.1.0"

var ErrMissingSession = errors.New("session is required")

// Session is the part of session.Session the tools use.
type Session interface {
	Ask(ctx context.Context, question string) (domain.Answer, error)
	Documents() []domain.Document
}

type Server struct {
	sess   Session
	server *mcp.Server
}

func NewServer(sess Session) (*Server, error) {
	if sess == nil {
		return nil, ErrMissingSession
	}
	s := &Server{
		sess:   sess,
		server: mcp.NewServer(&mcp.Implementation{Name: "qahub", Version: Version}, nil),
	}
	s.registerTools()
	return s, nil
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the indexed documents"`
}

type AskOutput struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
	Refused bool     `json:"refused"`
}

type ListDocumentsInput struct{}

type DocumentOutput struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ListDocumentsOutput struct {
	Documents []DocumentOutput `json:"documents"`
	Count     int              `json:"count"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question using only the indexed documents; refuses when nothing relevant is indexed",
	}, s.handleAsk)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List the documents currently indexed",
	}, s.handleListDocuments)
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	ans, err := s.sess.Ask(ctx, input.Question)
	if err != nil {
		return nil, AskOutput{}, err
	}
	return nil, AskOutput{Answer: ans.Text, Sources: ans.Sources, Refused: ans.Refused}, nil
}

func (s *Server) handleListDocuments(_ context.Context, _ *mcp.CallToolRequest, _ ListDocumentsInput) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	docs := s.sess.Documents()
	out := ListDocumentsOutput{Documents: make([]DocumentOutput, len(docs)), Count: len(docs)}
	for i, d := range docs {
		out.Documents[i] = DocumentOutput{ID: d.ID, Name: d.Name}
	}
	return nil, out, nil
}
