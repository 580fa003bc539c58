package pipeline

import (
	"path"

	"cloud.google.com/go/civil"
)

const (
	rawRoot     = "/raw/weather"
	datasetFile = "raw_weather.json"
)

// Path is an object store key for a serialized dataset.
type Path string

// LatestPath always holds the most recent dataset. Every run overwrites it.
const LatestPath Path = rawRoot + "/latest/" + datasetFile

// DatedPath returns the per-run key for the given run date,
// e.g. /raw/weather/2024-02-01/raw_weather.json.
func DatedPath(runDate civil.Date) Path {
	return Path(path.Join(rawRoot, runDate.String(), datasetFile))
}

func (p Path) String() string {
	return string(p)
}
