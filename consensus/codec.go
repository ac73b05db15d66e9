package consensus

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/claudefs/core/metajournal"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func encodeOp(op metajournal.MetaOp) ([]byte, error) { return json.Marshal(op) }

func decodeOp(data []byte, op *metajournal.MetaOp) error { return json.Unmarshal(data, op) }
