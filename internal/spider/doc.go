// Package spider decides which discovered URLs are fetched and followed.
//
// Following is bounded per discovery edge, not per URL: every link
// carries a State derived additively from its parent's, so the same URL
// reached along two paths may be followed on one edge and refused on
// the other. Extension and pattern gates run before any state is
// computed, keeping static assets and ignored paths out of the fetch
// queue entirely.
package spider
