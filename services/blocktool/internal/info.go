package internal

import (
	"os"

	"github.com/internetbuilder/hive/libraries/blocklog"
	"github.com/internetbuilder/hive/libraries/chain"
)

// LogInfo is a snapshot of a block log's state.
type LogInfo struct {
	Path         string `json:"path"`
	HeadBlockNum uint32 `json:"head_block_num"`
	HeadBlockID  string `json:"head_block_id,omitempty"`
	HeadOffset   uint64 `json:"head_offset"`
	LogBytes     int64  `json:"log_bytes"`
	IndexBytes   int64  `json:"index_bytes"`
}

// Info opens the log at path and reports its head and file sizes.
func Info(path string) (*LogInfo, error) {
	l, err := blocklog.Open(path, blocklog.Options{Codec: chain.Codec{}})
	if err != nil {
		return nil, err
	}
	defer l.Close()

	info := &LogInfo{Path: path}

	if head := l.Head(); head != nil {
		info.HeadBlockNum = head.BlockNum()
		if sb, ok := head.(*chain.SignedBlock); ok {
			info.HeadBlockID = sb.ID().String()
		}
		offset, err := l.OffsetOf(head.BlockNum())
		if err != nil {
			return nil, err
		}
		info.HeadOffset = offset
	}

	logStat, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	info.LogBytes = logStat.Size()

	idxStat, err := os.Stat(l.IndexPath())
	if err != nil {
		return nil, err
	}
	info.IndexBytes = idxStat.Size()

	return info, nil
}
