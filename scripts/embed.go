// Package scripts embeds the canned Risor query scripts shipped with isg.
package scripts

import "embed"

// FS holds queries/*.risor. Script paths inside it are slash-separated,
// e.g. "queries/hotspots.risor".
//
//go:embed queries/*.risor
var FS embed.FS
