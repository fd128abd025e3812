package mcpserver

// ConventionsURI is the resource URI of VaultConventions.
const ConventionsURI = "vault://conventions"

// VaultConventions describes the naming and linking conventions the tools
// rely on, for LLM consumers deciding how to call them.
const VaultConventions = `# Vault Keeper Conventions

All paths are relative to the vault root and use forward slashes.
Paths that resolve outside the vault (via ".." or links) are refused
with an error and nothing is written.

## Numeric IDs

Notes and folders may start with a decimal ID followed by a space:

` + "```" + `text
002 Project Alpha.md
010 Beta.md
` + "```" + `

` + "`get_next_id`" + ` looks at the direct entries of a folder and returns
one more than the largest leading number (leading zeros are ignored).
It returns 0 when the folder does not exist and 1 when nothing in it is
numbered. Pad the ID yourself if the folder uses zero-padding.

## Backlinks

` + "`add_backlink`" + ` appends a list item with a wiki-link to the end of the
parent note:

` + "```" + `markdown
- [[Child Note]]
` + "```" + `

The link text is the file name of the linked note without its folder or
extension. The linked note does not have to exist.

## Safety rules

1. ` + "`create_note`" + ` never overwrites an existing file.
2. ` + "`move_note`" + ` never replaces an existing destination.
3. ` + "`prepend_text_to_file`" + ` replaces the file atomically.
`
