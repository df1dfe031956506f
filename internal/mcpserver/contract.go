package mcpserver

// LinkRules describes how links behave so LLM clients can edit the
// directory without surprises.
const LinkRules = `# QR Director Link Rules

Each link maps a slug to a target URL. Printed QR codes encode
` + "`<base-url>/<slug>`" + `, so the slug must never change once printed; edit the
target URL instead.

## Fields

- slug: non-empty. Generated slugs use 5 to 8 characters from a-z and 0-9.
- url: non-empty. Stored and redirected to verbatim; no scheme is added.
- name: optional label shown in the admin UI.
- favorite: pins the link to the top of listings. Saving a link keeps its
  favorite flag.

## The default link

The slug ` + "`_default`" + ` is reserved. It is where the bare base URL redirects.
It can be edited with save_link but never deleted, and ` + "`<base-url>/_default`" + `
does not redirect.

## Listing order

Favorites first, then by slug in locale-aware order. The default link is
reported separately.
`
