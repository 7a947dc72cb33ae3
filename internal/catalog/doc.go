/*
Package catalog speaks the addon JSON-RPC 2.0 protocol.

It holds the wire types shared by the HTTP handlers and by Client, the
caller used to forward meta.find to an external metadata catalog:

	c := catalog.New("https://v3-cinemeta.strem.io/stremioget/stremio/v1", nil)
	res, err := c.MetaFind(ctx, json.RawMessage(`{"query":{"type":"movie"}}`))

Every outgoing call carries a fresh uuid as its id. Failures to reach the
catalog, non-2xx responses and JSON-RPC error objects are reported as
transient errors.
*/
package catalog
