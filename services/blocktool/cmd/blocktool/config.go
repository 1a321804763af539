package main

import "time"

type Config struct {
	Path    string `name:"block-log" alias:"path" default:"./block_log" help:"Path to the block log file"`
	Debug   bool   `help:"Enable debug logging (all categories)"`
	Workers int    `default:"0" help:"Worker threads for verify (0 = number of CPUs)"`

	Output   string `name:"output" help:"Output path for rewrite"`
	MaxBlock uint32 `name:"max-block" help:"Last block to keep when rewriting"`
	Resume   bool   `help:"Resume a previously interrupted index build"`

	ArchiveDir string `name:"archive-dir" default:"./archive" help:"Destination directory for archive"`
	ZstdLevel  int    `name:"zstd-level" default:"3" help:"Zstd compression level (1=fast, 3=balanced, 9=best)"`

	HTTPListen     string        `name:"http-listen" default:":9500" help:"HTTP API TCP address (use 'none' to disable)"`
	HTTPSocket     string        `name:"http-socket" default:"./blocktool.sock" help:"HTTP API unix socket (use 'none' to disable)"`
	RateLimit      int           `name:"rate-limit" default:"0" help:"API requests per second (0 = unlimited)"`
	RateBurst      int           `name:"rate-burst" default:"0" help:"API rate limit burst (0 = same as rate-limit)"`
	StreamEnabled  bool          `name:"stream-enabled" default:"true" help:"Enable the head stream websocket"`
	StreamInterval time.Duration `name:"stream-interval" default:"500ms" help:"Head poll interval for the stream"`

	Profile         bool `help:"Enable periodic CPU profiling"`
	ProfileInterval int  `name:"profile-interval" default:"60" help:"Profile logging interval in seconds"`

	LogFilter []string `name:"log-filter" default:"startup,blocklog,http,stream,verify,rewrite,archive,shutdown" help:"Log category filter (comma-separated)"`
	LogFile   string   `name:"log-file" help:"Log output file path (logs to both stdout and file when set)"`
}
