// Package store persists export artifacts to any gocloud.dev/blob bucket.
//
// A local directory ([OpenDir]) mirrors the content tree on disk: decomposed
// folders become directories and exported nodes become JSON files. Object
// stores ([Open] with s3://, gs:// or mem://) receive the same keys.
//
// # Storage Layout
//
//	{bucket}/{kind}.json                      global object sets, monitors
//	{bucket}/{id}_{name}.json                 root exported in one piece
//	{bucket}/{id}_{name}/{child}.json         child of a decomposed root
//	{bucket}/{id}_{name}/{child}/...          decomposed sub-folder
//	{bucket}/report.json                      manifest, written last
//
// # Manifest Format
//
//	{
//	  "run_id": "2f0c...",
//	  "completed_at": "2025-01-15T10:30:00Z",
//	  "artifacts": [
//	    {"key": "000000000001A2B3_alice/Errors.json", "size": 5312, "checksum": "..."},
//	    ...
//	  ],
//	  "report": {...}
//	}
//
// [Validate] reads the manifest back and checks every artifact.
package store
