package validate_test

import (
	"fmt"
	"testing"

	"github.com/ardanlabs/ledger/business/sys/validate"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck_Tx(t *testing.T) {
	tt := []struct {
		name   string
		tx     database.Tx
		fields []string
	}{
		{name: "valid", tx: database.NewTx("Alice", "Bob", 50)},
		{name: "zero", tx: database.NewTx("Alice", "Bob", 0)},
		{name: "negative", tx: database.NewTx("Alice", "Bob", -1), fields: []string{"amount"}},
		{name: "missing", tx: database.NewTx("", "", 1), fields: []string{"from", "to"}},
		{name: "self", tx: database.NewTx("Alice", "Alice", 1), fields: []string{"to"}},
		{name: "utf8", tx: database.NewTx("Al\xff", "Bob", 1), fields: []string{"from"}},
		{name: "unicode", tx: database.NewTx("Zoë", "Bob", 1)},
	}

	for _, tst := range tt {
		t.Run(tst.name, func(t *testing.T) {
			err := validate.Check(tst.tx)
			if len(tst.fields) == 0 {
				require.NoError(t, err)
				return
			}

			require.True(t, validate.IsFieldErrors(err), "expected field errors, got %v", err)

			fields := validate.GetFieldErrors(err).Fields()
			assert.Len(t, fields, len(tst.fields))
			for _, f := range tst.fields {
				assert.Contains(t, fields, f)
			}
		})
	}
}

func TestCheck_Message(t *testing.T) {
	err := validate.Check(database.NewTx("", "Bob", 1))

	fe := validate.GetFieldErrors(err)
	require.Len(t, fe, 1)
	assert.Equal(t, "from", fe[0].Field)
	assert.Equal(t, "from is a required field", fe[0].Error)
}

func TestCheck_UTF8Message(t *testing.T) {
	err := validate.Check(database.NewTx("Alice", "B\xfeb", 1))

	fe := validate.GetFieldErrors(err)
	require.Len(t, fe, 1)
	assert.Equal(t, "to", fe[0].Field)
	assert.Equal(t, "to must be valid utf-8 text", fe[0].Error)
}

func TestGetFieldErrors_Wrapped(t *testing.T) {
	err := fmt.Errorf("tx[0]: %w", validate.Check(database.NewTx("Alice", "Bob", -5)))

	assert.True(t, validate.IsFieldErrors(err))
	assert.Len(t, validate.GetFieldErrors(err), 1)
	assert.Nil(t, validate.GetFieldErrors(fmt.Errorf("plain")))
}
