// Package lazypager lets a grid style consumer page lazily through records of
// an external data source instead of loading the whole result set.
//
// Overview
//
// A LazyCollection answers the two questions a data grid keeps asking, "how
// many items are there" (Size) and "give me items N..N+k" (ItemIDs), by
// calling a DataAccessObject. The last fetched page is cached, so IDByIndex
// inside that window costs no round trip.
//
// Key concepts
//   - Session: caller owned state of one view (criteria, sort, page cache,
//     active filters).
//   - SearchCriteria: effective filters plus the cached total count and its
//     dirty flag.
//   - StringFilter: "string contains" filter. Texts not longer than
//     MinFilterLength never reach the data source.
//   - Orderings: multi-column ordering with explicit directions.
//   - GORMSource: DataAccessObject over a GORM query, with PageRequest
//     applying ORDER BY / LIMIT / OFFSET.
//
// A collection and its session are not safe for concurrent use.
package lazypager
