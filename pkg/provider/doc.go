/*
Package provider holds the concrete collaborators a holding sync talks to.

	            +-------------------+
	            |     operation     |
	            | (API / Dropbox)   |
	            +---------+---------+
	                      |
	      +---------------+---------------+
	      |                               |
	+-----+-----+                   +-----+-----+
	|   alma    |                   |  dropbox  |
	|  Catalog  |                   | sftp/local|
	+-----------+                   +-----------+

🎯 Purpose:
- alma implements remote.Catalog over the SRU search and bibs/holdings REST endpoints
- dropbox implements remote.Dropbox over SFTP, or a plain directory for local runs

🔄 Flow:
1. cmd/drsholding reads configuration
2. The Alma client is built directly; the dropbox transport is looked up by name with GetDropbox
3. Workflows only ever see the remote interfaces

⚡ Key Responsibilities:
- One attempt per call, no retries
- Non-200 responses and transfer errors wrap failure.ErrTransport
- API keys never appear in errors or logs

🔍 Example:

	factory, err := provider.GetDropbox("sftp")
	if err != nil {
		return err
	}
	box, err := factory(ctx, remote.DropboxArgs{Server: "dropbox.example.edu", User: "alma"})
*/
package provider
