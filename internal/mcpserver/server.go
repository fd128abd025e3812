// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the vault operations as tools for LLM hosts.
package mcpserver

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/vaultkeeper/internal/noteservice"
)

// Name is the server name announced during initialization.
const Name = "Vault Keeper"

// Version is set at build time via ldflags.
var Version = "dev"

// Server wraps the MCP server with the vault tools.
type Server struct {
	mcp    *server.MCPServer
	notes  *noteservice.Service
	logger *slog.Logger
}

// New creates a new MCP server with all vault tools registered.
func New(notes *noteservice.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{notes: notes, logger: logger}

	s.mcp = server.NewMCPServer(
		Name,
		Version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithInstructions("Tools for creating, moving and linking Markdown notes inside a sandboxed vault. "+
			"Read "+ConventionsURI+" for the ID and backlink conventions."),
	)

	s.mcp.AddTool(mcp.NewTool("hello_world",
		mcp.WithDescription("Returns a greeting from the Vault Keeper MCP."),
		mcp.WithString("name",
			mcp.Description("Name to greet"),
			mcp.DefaultString(noteservice.DefaultGreetingName)),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.logged("hello_world", s.helloWorld))

	s.mcp.AddTool(mcp.NewTool("get_next_id",
		mcp.WithDescription("Returns the next available ID from the specified folder "+
			"(e.g. '002 Project' or '003 TechStack'). Returns 0 if the folder does not exist."),
		mcp.WithString("folder_path", mcp.Required(), mcp.Description("Folder relative to the vault root")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.logged("get_next_id", s.getNextID))

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Creates a new note at the given path (relative to vault root). "+
			"Missing folders are created. Fails if a file already exists there."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path for the new note (e.g. folder/note.md)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Full content of the note")),
		mcp.WithDestructiveHintAnnotation(false),
	), s.logged("create_note", s.createNote))

	s.mcp.AddTool(mcp.NewTool("prepend_text_to_file",
		mcp.WithDescription("Prepends text to the beginning of an existing file."),
		mcp.WithString("file_path", mcp.Required(), mcp.Description("Relative path of the existing file")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to insert before the current content")),
	), s.logged("prepend_text_to_file", s.prependText))

	s.mcp.AddTool(mcp.NewTool("move_note",
		mcp.WithDescription("Moves a note from source to destination (both relative to root). "+
			"Never overwrites an existing destination."),
		mcp.WithString("source_rel", mcp.Required(), mcp.Description("Current relative path of the note")),
		mcp.WithString("dest_rel", mcp.Required(), mcp.Description("New relative path of the note")),
		mcp.WithDestructiveHintAnnotation(false),
	), s.logged("move_note", s.moveNote))

	s.mcp.AddTool(mcp.NewTool("add_backlink",
		mcp.WithDescription("Appends a markdown link of 'note_to_link' to the 'parent_note_rel'."),
		mcp.WithString("parent_note_rel", mcp.Required(), mcp.Description("Relative path of the note to append the link to")),
		mcp.WithString("note_to_link", mcp.Required(), mcp.Description("Note to link; only its file name without extension is used")),
	), s.logged("add_backlink", s.addBacklink))

	s.mcp.AddResource(
		mcp.NewResource(ConventionsURI, "Vault Conventions",
			mcp.WithResourceDescription("ID prefix and backlink conventions used by the vault tools."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readConventionsResource,
	)

	return s
}

// ServeStdio serves the MCP protocol over in/out until in is exhausted or
// ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, in, out)
}

// HTTPHandler returns the streamable HTTP transport for the server.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// logged wraps a tool handler with a log line per call.
func (s *Server) logged(name string, next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		res, err := next(ctx, req)

		attrs := []any{
			slog.String("tool", name),
			slog.Duration("duration", time.Since(start)),
		}
		switch {
		case err != nil:
			s.logger.Error("tool failed", append(attrs, slog.String("error", err.Error()))...)
		case res != nil && res.IsError:
			s.logger.Info("tool rejected", attrs...)
		default:
			s.logger.Debug("tool completed", attrs...)
		}
		return res, err
	}
}

// flatten turns an outcome into the string result seen by the caller.
func flatten(out noteservice.Outcome) *mcp.CallToolResult {
	if out.OK() {
		return mcp.NewToolResultText("Success: " + out.Message)
	}
	return mcp.NewToolResultError("Error: " + out.Message)
}

func (s *Server) helloWorld(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", noteservice.DefaultGreetingName)
	return mcp.NewToolResultText(s.notes.Hello(name)), nil
}

func (s *Server) getNextID(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder, err := req.RequireString("folder_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := s.notes.NextID(ctx, folder)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(id.String()), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.notes.CreateNote(ctx, path, content)
	if err != nil {
		return nil, err
	}
	return flatten(out), nil
}

func (s *Server) prependText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("file_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.notes.PrependText(ctx, path, text)
	if err != nil {
		return nil, err
	}
	return flatten(out), nil
}

func (s *Server) moveNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src, err := req.RequireString("source_rel")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dst, err := req.RequireString("dest_rel")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.notes.MoveNote(ctx, src, dst)
	if err != nil {
		return nil, err
	}
	return flatten(out), nil
}

func (s *Server) addBacklink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	parent, err := req.RequireString("parent_note_rel")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := req.RequireString("note_to_link")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.notes.AddBacklink(ctx, parent, note)
	if err != nil {
		return nil, err
	}
	return flatten(out), nil
}

func (s *Server) readConventionsResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ConventionsURI,
			MIMEType: "text/markdown",
			Text:     VaultConventions,
		},
	}, nil
}
