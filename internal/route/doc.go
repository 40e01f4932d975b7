// Package route implements the route table and the longest-prefix route
// resolver.
//
// A Table is built once from a route manifest and is read-only afterwards,
// so it can be shared between request goroutines without locking. Resolve
// maps a request path to a Resolved value holding the target and the
// rewritten path:
//
//	table, err := route.LoadManifest("neo-app.json")
//	if err != nil {
//	    return err
//	}
//	resolved, ok := table.Resolve("/content/app.js", http.MethodGet)
//
// Matching is lexical and case-sensitive. A prefix matches when it occurs
// anywhere in the path; among matches the longest prefix wins and ties go
// to the entry that appears first in the manifest.
package route
