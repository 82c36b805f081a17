package repositories

import (
	"chat-hub/errors"
	"fmt"
	"reflect"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

// Records are stored as deterministic CBOR: the same record always
// produces the same bytes. Times keep their nanoseconds.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("repositories: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("repositories: CBOR decoder initialization failed: " + err.Error())
	}
}

func encode(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func decode(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// getRecord loads and decodes the record stored under key.
func getRecord(txn *badger.Txn, key string, v any) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return decode(val, v)
	})
}

func setRecord(txn *badger.Txn, key string, v any) error {
	data, err := encode(v)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return txn.Set([]byte(key), data)
}

// storeError maps Badger failures onto the package sentinels.
func storeError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case err == badger.ErrKeyNotFound:
		return fmt.Errorf("%s: %w", what, errors.ErrNotFound)
	default:
		return fmt.Errorf("%w: %s: %v", errors.ErrStoreFailure, what, err)
	}
}
