package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
	"github.com/kirillkom/annual-report-rag/internal/core/ports"
)

const (
	toolAnswerQuestion = "answer_question"
	toolListCompanies  = "list_companies"
)

// Server exposes the answer pipeline as MCP tools over stdio.
type Server struct {
	answerer  ports.QuestionAnswerer
	companies []string
	logger    *slog.Logger
	mcp       *server.MCPServer
}

func NewServer(answerer ports.QuestionAnswerer, companies []string, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		answerer:  answerer,
		companies: companies,
		logger:    logger,
		mcp:       server.NewMCPServer("finrag", version, server.WithToolCapabilities(false)),
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool(toolAnswerQuestion,
		mcp.WithDescription("Answer a question about the ingested annual reports with a typed value and page references"),
		mcp.WithString("question", mcp.Required(), mcp.Description("Question mentioning the company it is about")),
		mcp.WithString("kind",
			mcp.Required(),
			mcp.Enum(string(domain.KindNumber), string(domain.KindName), string(domain.KindBoolean), string(domain.KindNames)),
			mcp.Description("Expected answer type"),
		),
	), s.handleAnswer)

	s.mcp.AddTool(mcp.NewTool(toolListCompanies,
		mcp.WithDescription("List the companies whose reports are indexed"),
	), s.handleListCompanies)
}

// Run serves until ctx is cancelled or the input stream closes.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	err := stdio.Listen(ctx, in, out)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) handleAnswer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil || strings.TrimSpace(question) == "" {
		return mcp.NewToolResultError("question is required"), nil
	}
	rawKind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError("kind is required"), nil
	}
	kind, err := domain.ParseAnswerKind(rawKind)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	record, err := s.answerer.Answer(ctx, domain.Question{Text: question, Kind: kind})
	if err != nil {
		s.logger.Error("mcp_answer_failed", "kind", kind, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	if record.References == nil {
		record.References = []domain.Reference{}
	}

	body, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(body)), nil
}

func (s *Server) handleListCompanies(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body, err := json.Marshal(map[string]any{"companies": s.companies})
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(body)), nil
}
