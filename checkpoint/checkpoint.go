package checkpoint

import (
	"encoding/json"
	"github.com/pkg/errors"
	"time"
)

//Record one checkpoint of a parallel run. A record always describes the whole
//run state at the time of the write, files are replaced and never appended.
//Items hold only the output of completed ranges concatenated in input order,
//CompletedRanges describes which absolute positions they cover.
type Record struct {
	RunID           string                 `json:"runId"`
	CompletedRanges [][2]int               `json:"completedRanges"`
	Items           []interface{}          `json:"items"`
	Metadata        interface{}            `json:"metadata"`
	Config          map[string]interface{} `json:"config"`
	Timestamp       time.Time              `json:"timestamp"`
}

//Writer persist checkpoint records with atomic replacement. The record is
//written to a temporary sibling first and then renamed over the destination,
//an interrupted write leaves the previous checkpoint intact.
type Writer struct {
	storage FileStorage
	path    string
}

//NewWriter new instance, a nil storage means the local filesystem
func NewWriter(storage FileStorage, path string) *Writer {
	if storage == nil {
		storage = &LocalFileSystem{}
	}
	return &Writer{storage: storage, path: path}
}

//Path the destination file
func (w *Writer) Path() string {
	return w.path
}

//Persist write one record, replacing any previous one at the destination
func (w *Writer) Persist(record *Record) error {
	tmp := w.path + ".tmp"
	out, err := w.storage.Create(tmp)
	if err != nil {
		return errors.Wrapf(err, "create checkpoint %s", tmp)
	}
	if err = json.NewEncoder(out).Encode(record); err != nil {
		out.Close()
		w.storage.Remove(tmp)
		return errors.Wrapf(err, "encode checkpoint %s", tmp)
	}
	if err = out.Close(); err != nil {
		w.storage.Remove(tmp)
		return errors.Wrapf(err, "close checkpoint %s", tmp)
	}
	if err = w.storage.Rename(tmp, w.path); err != nil {
		return errors.Wrapf(err, "replace checkpoint %s", w.path)
	}
	return nil
}

//Load read a checkpoint record, a nil storage means the local filesystem
func Load(storage FileStorage, path string) (*Record, error) {
	if storage == nil {
		storage = &LocalFileSystem{}
	}
	in, err := storage.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open checkpoint %s", path)
	}
	defer in.Close()
	record := &Record{}
	if err = json.NewDecoder(in).Decode(record); err != nil {
		return nil, errors.Wrapf(err, "decode checkpoint %s", path)
	}
	return record, nil
}
