package digest_test

import (
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/digest"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// =============================================================================

func Test_Hash(t *testing.T) {
	type table struct {
		name     string
		strategy string
		data     []byte
		exp      string
	}

	tt := []table{
		{
			name:     "sha256-empty",
			strategy: digest.NameSHA256,
			data:     nil,
			exp:      "0xe3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name:     "sha256-tx",
			strategy: digest.NameSHA256,
			data:     []byte(`{"from":"Alice","to":"Bob","amount":50}`),
			exp:      "0x994c4e2d6f8d893ad4d185eb5eecfc71df028a126d61f04327460482dbc1061c",
		},
		{
			name:     "keccak256-empty",
			strategy: digest.NameKeccak256,
			data:     nil,
			exp:      "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		},
	}

	t.Log("Given the need to hash data.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen handling strategy %s.", testID, tst.strategy)
				{
					strategy, err := digest.StrategyFor(tst.strategy)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to resolve the strategy: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to resolve the strategy.", success, testID)

					got := digest.Hash(strategy, tst.data)
					if got != tst.exp {
						t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, got)
						t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, tst.exp)
						t.Fatalf("\t%s\tTest %d:\tShould get back the right hash.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould get back the right hash.", success, testID)

					if !digest.IsHash(got) {
						t.Fatalf("\t%s\tTest %d:\tShould produce a canonical hash.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould produce a canonical hash.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_Value(t *testing.T) {
	value := struct {
		Name string
	}{
		Name: "Bill",
	}

	const exp = "0x0f6887ac85101d6d6425a617edf35bd721b5f619fb92c36c3d2224e3bdb0ee5a"

	got, err := digest.Value(digest.SHA256, value)
	if err != nil {
		t.Fatalf("Should be able to hash the value: %s", err)
	}

	if got != exp {
		t.Logf("got: %s", got)
		t.Logf("exp: %s", exp)
		t.Fatalf("Should get back the right hash.")
	}

	again, err := digest.Value(digest.SHA256, value)
	if err != nil {
		t.Fatalf("Should be able to hash the value again: %s", err)
	}

	if got != again {
		t.Fatalf("Should get back the same hash for the same value.")
	}
}

func Test_IsHash(t *testing.T) {
	tt := []struct {
		s   string
		exp bool
	}{
		{s: digest.ZeroHash, exp: true},
		{s: digest.EmptyHash(digest.SHA256), exp: true},
		{s: "0x00", exp: false},
		{s: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", exp: false},
		{s: "0xz3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", exp: false},
	}

	for _, tst := range tt {
		if got := digest.IsHash(tst.s); got != tst.exp {
			t.Errorf("IsHash(%q): got %t, exp %t", tst.s, got, tst.exp)
		}
	}

	if _, err := digest.Decode("0x00"); err == nil {
		t.Fatalf("Should not be able to decode a short hash.")
	}

	sum, err := digest.Decode(digest.ZeroHash)
	if err != nil {
		t.Fatalf("Should be able to decode the zero hash: %s", err)
	}

	if len(sum) != digest.Size {
		t.Fatalf("Should get back %d bytes, got %d", digest.Size, len(sum))
	}
}

func Test_UnknownStrategy(t *testing.T) {
	if _, err := digest.StrategyFor("md5"); err == nil {
		t.Fatalf("Should not be able to resolve an unknown strategy.")
	}
}
