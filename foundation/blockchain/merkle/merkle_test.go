package merkle_test

import (
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/merkle"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// Data uses the sha256 hashing algorithm for the merkle tree.
type Data struct {
	x string
}

// Hash hashes the values using sha256.
func (d Data) Hash() ([]byte, error) {
	h := sha256.Sum256([]byte(d.x))
	return h[:], nil
}

// Equals tests for equality of two piece of data.
func (d Data) Equals(other Data) bool {
	return d.x == other.x
}

func toData(values ...string) []Data {
	data := make([]Data, len(values))
	for i, v := range values {
		data[i] = Data{x: v}
	}
	return data
}

// =============================================================================

var table = []struct {
	name string
	data []Data
	root string
}{
	{
		name: "empty",
		data: nil,
		root: "0xe3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
	},
	{
		name: "one",
		data: toData("a"),
		root: "0xca978112ca1bbdcafac231b39a23dc4da786eff8147c4e72b9807785afee48bb",
	},
	{
		name: "two",
		data: toData("a", "b"),
		root: "0xe5a01fee14e0ed5c48714f22180f25ad8365b53f9779f79dc4a3d7e93963f94a",
	},
	{
		name: "three",
		data: toData("a", "b", "c"),
		root: "0x7075152d03a5cd92104887b476862778ec0c87be5c2fa1c0a90f87c49fad6eff",
	},
	{
		name: "five",
		data: toData("a", "b", "c", "d", "e"),
		root: "0xd71f8983ad4ee170f8129f1ebcdd7440be7798d8e1c80420bf11f1eced610dba",
	},
}

func Test_MerkleRoot(t *testing.T) {
	t.Log("Given the need to summarize a set of values.")
	{
		for testID, tst := range table {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen handling %d values.", testID, len(tst.data))
				{
					tree, err := merkle.NewTree(tst.data)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to construct the tree: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to construct the tree.", success, testID)

					if tree.RootHex() != tst.root {
						t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, tree.RootHex())
						t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, tst.root)
						t.Fatalf("\t%s\tTest %d:\tShould get back the right root.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould get back the right root.", success, testID)

					if err := tree.Verify(); err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to verify the tree: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to verify the tree.", success, testID)

					values := tree.Values()
					if len(values) != len(tst.data) {
						t.Fatalf("\t%s\tTest %d:\tShould get back %d values, got %d.", failed, testID, len(tst.data), len(values))
					}
					for i := range values {
						if !values[i].Equals(tst.data[i]) {
							t.Fatalf("\t%s\tTest %d:\tShould get back the values in order.", failed, testID)
						}
					}
					t.Logf("\t%s\tTest %d:\tShould get back the values in order.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_Proof(t *testing.T) {
	for _, tst := range table[1:] {
		f := func(t *testing.T) {
			tree, err := merkle.NewTree(tst.data)
			if err != nil {
				t.Fatalf("Should be able to construct the tree: %s", err)
			}

			for _, value := range tst.data {
				proof, order, err := tree.Proof(value)
				if err != nil {
					t.Fatalf("Should be able to get a proof for %s: %s", value.x, err)
				}

				h, _ := value.Hash()
				if !merkle.VerifyProof(sha256.New, h, proof, order, tree.MerkleRoot) {
					t.Fatalf("Should be able to verify the proof for %s.", value.x)
				}

				if err := tree.VerifyData(value); err != nil {
					t.Fatalf("Should be able to verify the data for %s: %s", value.x, err)
				}
			}

			if _, _, err := tree.Proof(Data{x: "missing"}); !errors.Is(err, merkle.ErrNotFound) {
				t.Fatalf("Should not find a proof for a missing value, got %v", err)
			}
		}

		t.Run(tst.name, f)
	}
}

func Test_TrailingDuplicates(t *testing.T) {
	pairs := []struct {
		name  string
		short []Data
		long  []Data
	}{
		{"leaf", toData("a", "b", "c"), toData("a", "b", "c", "c")},
		{"node", toData("a", "b", "c", "d", "e", "f"), toData("a", "b", "c", "d", "e", "f", "e", "f")},
		{"single", toData("a"), toData("a", "a")},
	}

	t.Log("Given the need for a root unique to the exact list of values.")
	{
		for testID, tst := range pairs {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen repeating the trailing values of %d values.", testID, len(tst.short))
				{
					short, err := merkle.NewTree(tst.short)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to construct the tree: %v", failed, testID, err)
					}

					long, err := merkle.NewTree(tst.long)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to construct the tree: %v", failed, testID, err)
					}

					if short.RootHex() == long.RootHex() {
						t.Fatalf("\t%s\tTest %d:\tShould get different roots, both are %s.", failed, testID, short.RootHex())
					}
					t.Logf("\t%s\tTest %d:\tShould get different roots.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_Tamper(t *testing.T) {
	tree, err := merkle.NewTree(toData("a", "b", "c"))
	if err != nil {
		t.Fatalf("Should be able to construct the tree: %s", err)
	}

	tree.Leafs[1].Value = Data{x: "z"}

	if err := tree.Verify(); err == nil {
		t.Fatalf("Should not be able to verify a tampered tree.")
	}

	if err := tree.VerifyData(Data{x: "z"}); err == nil {
		t.Fatalf("Should not be able to verify tampered data.")
	}

	if err := tree.Rebuild(); err != nil {
		t.Fatalf("Should be able to rebuild the tree: %s", err)
	}

	if tree.RootHex() == table[3].root {
		t.Fatalf("Should get a different root after rebuilding with tampered data.")
	}

	if err := tree.Verify(); err != nil {
		t.Fatalf("Should be able to verify the rebuilt tree: %s", err)
	}
}

func Test_HashStrategy(t *testing.T) {
	tree, err := merkle.NewTree(nil, merkle.WithHashStrategy[Data](sha256.New))
	if err != nil {
		t.Fatalf("Should be able to construct the tree: %s", err)
	}

	exp := sha256.Sum256(nil)
	if tree.RootHex() != hexutil.Encode(exp[:]) {
		t.Fatalf("Should get back the hash of empty input for an empty tree.")
	}

	if _, err := tree.MarshalText(); err == nil {
		t.Fatalf("Should not be able to marshal the tree.")
	}
}
