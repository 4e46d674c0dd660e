package mcpserver

// FormatContract describes the tree file layout and the naming rules that
// LLM consumers should follow when adding folders and entries.
const FormatContract = `# DataTree File Format

A tree is stored as one UTF-8 JSON object, indented with four spaces, keys sorted.
The top-level object is the root folder.

## Nodes

- A **folder** is an object whose keys are child names. It never has a ` + "`" + `content` + "`" + ` key.
- An **entry** is an object with a ` + "`" + `content` + "`" + ` string and an optional ` + "`" + `image` + "`" + `
  holding base64-encoded png or jpeg bytes. Entries have no children.

` + "```" + `json
{
    "Projects": {
        "kickoff": {
            "content": "first meeting",
            "image": "iVBORw0KGgo..."
        },
        "2024": {}
    }
}
` + "```" + `

## Rules

1. **Names** are non-empty and contain no ` + "`" + `/` + "`" + `. Surrounding whitespace is trimmed.
2. **Paths** join names with ` + "`" + `/` + "`" + `; the empty path is the root.
3. **Content** is required and must not be blank.
4. A name is either a folder or an entry. Adding a folder inside an entry, or an entry over
   a folder, is a conflict.
5. Adding an entry under a missing parent creates the parent folders.
6. Adding an entry whose name already exists replaces it.
7. Deleting a folder deletes everything under it; ` + "`" + `delete_item` + "`" + ` needs ` + "`" + `confirm: "yes"` + "`" + `.
8. Search matches names only, case-insensitively; content is not searched.
9. Legacy files may store an entry as a bare string. It is read as ` + "`" + `{"content": "<string>"}` + "`" + `.

## Images

Attach images with ` + "`" + `attach_image` + "`" + `, passing a ` + "`" + `data:image/png;base64,...` + "`" + ` URI or an
http(s) URL. Only png and jpeg are accepted, up to 10 MB.
`
