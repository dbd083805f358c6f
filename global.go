package parbatch

import (
	"database/sql"
	"github.com/parbatch/parbatch/internal/logs"
	"os"
)

//log
var logger logs.Logger = logs.NewLogger(os.Stdout, logs.Info)

//SetLogger set a logger instance for parbatch
func SetLogger(l logs.Logger) {
	logger = l
}

//task pool
const (
	DefaultRunPoolSize   = 10
	DefaultChunkPoolSize = 1000
)

var runPool = newTaskPool(DefaultRunPoolSize)
var chunkPool = newTaskPool(DefaultChunkPoolSize)

//SetMaxRunningRuns set max number of parallel async run invocations
func SetMaxRunningRuns(size int) {
	runPool.SetMaxSize(size)
}

//SetMaxRunningChunks set total chunk worker capacity shared by all runs
func SetMaxRunningChunks(size int) {
	chunkPool.SetMaxSize(size)
}

//db
var db *sql.DB

//SetDB register a *sql.DB instance to record run history.
//The repository stays disabled until a db is set.
func SetDB(sqlDb *sql.DB) {
	if sqlDb == nil {
		panic("sqlDb must not be nil")
	}
	db = sqlDb
}
