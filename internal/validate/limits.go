package validate

import (
	"encoding/json"
	"fmt"

	"github.com/ndjc/forge/internal/contract"
)

// checkLimits enforces the size caps. Base64 content size is approximated at
// 3/4 of the encoded length so no file has to be decoded just to be measured.
func checkLimits(c *contract.Contract, l Limits) []Issue {
	var issues []Issue

	if len(c.Files) > l.MaxFiles {
		is := critical(CodeLimitsFileCount,
			fmt.Sprintf("contract carries %d files, limit is %d", len(c.Files), l.MaxFiles))
		issues = append(issues, is)
	}

	capBytes := l.MaxFileKB * 1024
	for i, f := range c.Files {
		size := len(f.Content)
		if f.Encoding == contract.EncodingBase64 {
			size = size * 3 / 4
		}
		if size > capBytes {
			is := critical(CodeLimitsFileSize,
				fmt.Sprintf("decoded size ~%d bytes exceeds per-file cap of %d KB", size, l.MaxFileKB))
			is.Where = fmt.Sprintf("files[%d] %s", i, f.Path)
			issues = append(issues, is)
		}
	}

	// The anchors payload cap guards against runaway generation.
	raw, err := json.Marshal(c.Anchors)
	if err == nil && len(raw) > l.MaxAnchorBytes {
		is := critical(CodeLimitsAnchorBytes,
			fmt.Sprintf("serialized anchors payload is %d bytes, limit is %d", len(raw), l.MaxAnchorBytes))
		issues = append(issues, is)
	}

	return issues
}
