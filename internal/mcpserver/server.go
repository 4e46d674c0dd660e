// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes datatree tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/datatree/internal/imaging"
	"github.com/starford/datatree/internal/treeservice"
	"github.com/starford/datatree/internal/workbench"
)

const formatURI = "datatree://format"

// Server wraps the MCP server with datatree tools.
type Server struct {
	mcp *server.MCPServer
	wb  *workbench.Workbench
}

// New creates a new MCP server with all datatree tools registered.
func New(wb *workbench.Workbench, version string) *Server {
	s := &Server{wb: wb}

	s.mcp = server.NewMCPServer(
		"DataTree",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	treeArg := mcp.WithString("tree", mcp.Description("Tree instance name (see list_trees); defaults to the first one"))

	s.mcp.AddTool(mcp.NewTool("list_trees",
		mcp.WithDescription("List the mounted tree instances and the files they are stored in."),
	), s.listTrees)

	s.mcp.AddTool(mcp.NewTool("search_tree",
		mcp.WithDescription("Case-insensitive search over folder and entry names. Entry content is not searched."),
		treeArg,
		mcp.WithString("term", mcp.Required(), mcp.Description("Substring to look for in names")),
	), s.searchTree)

	s.mcp.AddTool(mcp.NewTool("list_folders",
		mcp.WithDescription("List every folder path in the tree, sorted."),
		treeArg,
	), s.listFolders)

	s.mcp.AddTool(mcp.NewTool("read_entry",
		mcp.WithDescription("Read an entry's content and image metadata."),
		treeArg,
		mcp.WithString("path", mcp.Required(), mcp.Description("Slash-separated entry path (e.g. Projects/kickoff)")),
	), s.readEntry)

	s.mcp.AddTool(mcp.NewTool("add_folder",
		mcp.WithDescription("Create a folder, creating missing parent folders. Fails if a path segment is an entry."),
		treeArg,
		mcp.WithString("path", mcp.Required(), mcp.Description("Slash-separated folder path")),
		mcp.WithString("parent", mcp.Description("Optional parent folder the path is relative to")),
	), s.addFolder)

	s.mcp.AddTool(mcp.NewTool("add_entry",
		mcp.WithDescription("Create an entry with text content. An existing entry with the same name is replaced. "+
			"Read the format contract first via get_format_contract or the datatree://format resource."),
		treeArg,
		mcp.WithString("parent", mcp.Description("Parent folder path; empty for the root")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Entry name, no slashes")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Non-empty text content")),
	), s.addEntry)

	s.mcp.AddTool(mcp.NewTool("edit_entry",
		mcp.WithDescription("Replace an entry's content. The image is kept unless remove_image is true."),
		treeArg,
		mcp.WithString("path", mcp.Required(), mcp.Description("Slash-separated entry path")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Non-empty text content")),
		mcp.WithBoolean("remove_image", mcp.Description("Drop the entry's image")),
	), s.editEntry)

	s.mcp.AddTool(mcp.NewTool("delete_item",
		mcp.WithDescription("Delete a folder with all its contents, or an entry. Requires confirm set to \"yes\"."),
		treeArg,
		mcp.WithString("path", mcp.Required(), mcp.Description("Slash-separated item path")),
		mcp.WithString("confirm", mcp.Required(), mcp.Description("Must be \"yes\"")),
	), s.deleteItem)

	s.mcp.AddTool(mcp.NewTool("attach_image",
		mcp.WithDescription("Attach an image to an existing entry. Accepts a data:image/png|jpeg;base64 URI "+
			"or an http(s) URL."),
		treeArg,
		mcp.WithString("path", mcp.Required(), mcp.Description("Slash-separated entry path")),
		mcp.WithString("source", mcp.Required(), mcp.Description("Data URI or http(s) URL of a png or jpeg image")),
	), s.attachImage)

	s.mcp.AddTool(mcp.NewTool("get_format_contract",
		mcp.WithDescription("Returns the datatree file format contract. "+
			"Call this before adding entries to understand names, paths and images."),
	), s.getFormatContract)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Tree File Format",
			mcp.WithResourceDescription("JSON layout of a datatree file and the rules for names and paths."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// service resolves the optional tree argument.
func (s *Server) service(req mcp.CallToolRequest) (*treeservice.Service, error) {
	name := req.GetString("tree", "")
	if name == "" {
		return s.wb.Services()[0], nil
	}
	return s.wb.Get(name)
}

func (s *Server) listTrees(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type treeInfo struct {
		Name  string `json:"name"`
		Label string `json:"label"`
		File  string `json:"file"`
	}
	var out []treeInfo
	for _, svc := range s.wb.Services() {
		out = append(out, treeInfo{Name: svc.Name(), Label: svc.Label(), File: svc.File()})
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) searchTree(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc, err := s.service(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	term, err := req.RequireString("term")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lines, err := svc.Search(term)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) listFolders(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc, err := s.service(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	folders := svc.FolderChoices()[1:]
	if len(folders) == 0 {
		return mcp.NewToolResultText("no folders"), nil
	}
	return mcp.NewToolResultText(strings.Join(folders, "\n")), nil
}

func (s *Server) readEntry(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc, err := s.service(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ev, err := svc.ViewEntry(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(ev, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) addFolder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc, err := s.service(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	parent := req.GetString("parent", "")
	if err := svc.AddFolder(ctx, parent, path); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created folder: %s", strings.Trim(parent+"/"+path, "/"))), nil
}

func (s *Server) addEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc, err := s.service(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d := treeservice.NewEntryDraft(req.GetString("parent", ""))
	d.Name = name
	d.Content = content
	if err := svc.AddEntry(ctx, d); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created entry: %s", strings.Trim(d.Parent+"/"+name, "/"))), nil
}

func (s *Server) editEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc, err := s.service(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := svc.EditDraft(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d.Content = content
	if req.GetBool("remove_image", false) {
		d.RemoveImage()
	}
	if err := svc.EditEntry(ctx, path, d); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated entry: %s", path)), nil
}

func (s *Server) deleteItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc, err := s.service(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	answer := req.GetString("confirm", "")
	var prompt string
	deleted, err := svc.DeleteItem(ctx, path, treeservice.ConfirmFunc(func(p string) bool {
		prompt = p
		return strings.EqualFold(answer, "yes")
	}))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !deleted {
		return mcp.NewToolResultError(prompt + ` Call again with confirm set to "yes".`), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", path)), nil
}

func (s *Server) attachImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc, err := s.service(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var data []byte
	if strings.HasPrefix(source, "data:") {
		data, err = imaging.DecodeDataURI(source)
	} else {
		data, err = fetchImage(ctx, source)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := svc.SetImage(ctx, path, data); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	_, info, err := svc.ImageData(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.Marshal(map[string]any{"path": path, "image": info})
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getFormatContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(FormatContract), nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     FormatContract,
		},
	}, nil
}
