// Package dedupe provides the shared singleflight group used to deduplicate
// concurrent image downloads. Using a centralized singleflight.Group ensures
// only one physical download runs for a given resource key even when several
// fetcher instances (thumbnail and full-size paths, tests) race on the same
// URL.
package dedupe

import "golang.org/x/sync/singleflight"

// FetchGroup deduplicates image downloads keyed by the resolved resource
// URL. The group removes a key before notifying waiters, so a settling
// download is never mistaken for still-in-flight.
var FetchGroup singleflight.Group
