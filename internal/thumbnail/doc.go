// Package thumbnail holds the value types shared by both cache tiers and the
// orchestrator: quality tiers, encoded formats, sampling density, the
// parameter set recorded with each cached video, the timestamp sampling
// policy and the error codes surfaced by the cache.
package thumbnail
