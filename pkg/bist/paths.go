package bist

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ParamsFile is the name of the parameter bundle written next to the model
// weights.
const ParamsFile = "params.json"

func paramsPath(modelPath string) string {
	return filepath.Join(filepath.Dir(modelPath), ParamsFile)
}

// derivePath inserts suffix before the extension of path, or appends it
// when the file name has none.
func derivePath(path, suffix string) string {
	ext := filepath.Ext(path)
	if ext == "" || ext == filepath.Base(path) {
		return path + suffix
	}
	return strings.TrimSuffix(path, ext) + suffix + ext
}

func epochPredPath(dev string, epoch int) string {
	return derivePath(dev, fmt.Sprintf("_epoch_%d_pred", epoch))
}

func predPath(dataset string) string {
	return derivePath(dataset, "_pred")
}
