// Package capture implements the mutation-capture pipeline: a pre-update
// hook on the SQLite write path feeds change events through a bounded queue
// to a background dispatcher that notifies the host application.
package capture

import (
	"encoding/base64"
	"fmt"
	"strconv"
)

// EncodeValue converts a raw column value from the storage engine into its
// transport string form. Every input has a defined output; the encoding is
// deterministic and carries no type tag (consumers know column affinity
// from the schema).
//
//	NULL    -> "NULL"
//	INTEGER -> decimal text
//	REAL    -> shortest decimal text, no exponent
//	TEXT    -> as-is
//	BLOB    -> standard base64
func EncodeValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case string:
		return val
	case []byte:
		return base64.StdEncoding.EncodeToString(val)
	case bool:
		// SQLite has no boolean affinity; drivers normally hand back 0/1.
		if val {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprintf("%v", val)
	}
}
