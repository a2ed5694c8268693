/*
Package operation implements the holding synchronization workflows.

	+-----------+      +--------+      +---------------+
	|  Trigger  | ---> | Router | ---> |  APIWorkflow  | ---> catalog PUT
	| (pqid,urn)|      +---+----+      +---------------+
	+-----------+          |           +---------------+
	                       +---------> |DropboxWorkflow| ---> /incoming/*.xml
	                                   +---------------+

🎯 Purpose:
- Push the preservation object URN of a thesis into its catalog holding
- Pick the delivery path from the record store's pre-ingest flag
- Never submit the same identifier twice unless forced

🔄 API flow:
1. Guard (skipped by force or integration test)
2. ResolveId, SelectHolding, FetchHolding
3. Transform (852 $z), Upload, Confirm
4. Cleanup of the run directory, then the status update

🔄 Dropbox flow:
1. Guard, LookupBatch
2. LocateManifest, SanitizeManifest, ExtractMetadata
3. RenderTemplate, AppendToCollection
4. Transfer, removal of the collection file, then the status update

⚡ Failure handling:
- Every step failure ends the run with one failure kind (see pkg/failure)
- Store errors inside the guard are returned, never read as "not processed"
- Outcome keeps CatalogUpdated, Transferred and StatusRecorded apart

🤝 Interfaces:
- remote.Catalog: the catalog API
- remote.Dropbox: the file drop
- state.Store: processing status records
- lock.Locker: optional run lock held by Runner

🔍 Example:

	api, _ := operation.NewAPIWorkflow(opts)
	dropbox, _ := operation.NewDropboxWorkflow(opts)
	router, _ := operation.NewRouter(operation.RouterOptions{Store: opts.Store, API: api, Dropbox: dropbox})
	out, err := router.Dispatch(ctx, operation.Request{ExternalID: "28542882", ObjectURN: urn})
*/
package operation
