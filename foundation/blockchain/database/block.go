package database

import (
	"context"
	"fmt"
	"slices"

	"github.com/ardanlabs/ledger/foundation/blockchain/digest"
	"github.com/ardanlabs/ledger/foundation/blockchain/pow"
)

// BlockHeader represents the information sealed by the block hash. Field
// order matters, it is the canonical order used when the header is hashed.
type BlockHeader struct {
	Number        uint64 `json:"number"`          // Position of the block in the chain, 0 for genesis.
	TimeStamp     uint64 `json:"timestamp"`       // Time the block was mined in seconds.
	TransRoot     string `json:"trans_root"`      // Merkle root of the transactions in this block.
	PrevBlockHash string `json:"prev_block_hash"` // Hash of the previous block in the chain.
	Nonce         uint64 `json:"nonce"`           // Value identified to solve the hash solution.
}

// Hash returns the unique hash for the header.
func (h BlockHeader) Hash(strategy digest.Strategy) (string, error) {
	return digest.Value(strategy, h)
}

// Block represents a group of transactions batched together. A block is a
// value and is never changed once it has been sealed.
type Block struct {
	Header BlockHeader
	Hash   string
	Trans  []Tx
}

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	Number        uint64
	PrevBlockHash string
	TimeStamp     uint64
	Trans         []Tx
	Difficulty    uint
	MaxAttempts   uint64
	Workers       int
	Strategy      digest.Strategy
	EvHandler     func(v string, args ...any)
}

// POW constructs a new Block and performs the work to find a nonce that
// solves the cryptographic POW puzzle. Either a sealed block is returned or
// an error, there is no partial result.
func POW(ctx context.Context, args POWArgs) (Block, error) {
	ev := func(v string, args ...any) {}
	if args.EvHandler != nil {
		ev = args.EvHandler
	}

	strategy := args.Strategy
	if strategy == nil {
		strategy = digest.SHA256
	}

	ev("database: POW: MINING: started: blk[%d]", args.Number)
	defer ev("database: POW: MINING: completed: blk[%d]", args.Number)

	for _, tx := range args.Trans {
		ev("database: POW: MINING: tx[%s]", tx)
	}

	// The root of this tree will be part of the block to be mined.
	root, err := MerkleRoot(strategy, args.Trans)
	if err != nil {
		return Block{}, fmt.Errorf("merkle root: %w", err)
	}

	header := BlockHeader{
		Number:        args.Number,
		TimeStamp:     args.TimeStamp,
		TransRoot:     root,
		PrevBlockHash: args.PrevBlockHash,
		Nonce:         0, // Will be identified by the POW algorithm.
	}

	cfg := pow.Config{
		Difficulty:  args.Difficulty,
		MaxAttempts: args.MaxAttempts,
		Workers:     args.Workers,
		EvHandler:   args.EvHandler,
	}

	// The header is a value so every trial works on its own copy.
	hashFn := func(nonce uint64) (string, error) {
		h := header
		h.Nonce = nonce
		return h.Hash(strategy)
	}

	res, err := pow.Search(ctx, cfg, hashFn)
	if err != nil {
		ev("database: POW: MINING: ERROR: blk[%d]: %s", args.Number, err)
		return Block{}, err
	}

	header.Nonce = res.Nonce

	block := Block{
		Header: header,
		Hash:   res.Hash,
		Trans:  slices.Clone(args.Trans),
	}

	ev("database: POW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]: attempts[%d]", header.PrevBlockHash, block.Hash, res.Attempts)

	return block, nil
}

// ValidateBlock takes a block and validates it to be included into the
// blockchain after the specified previous block.
func (b Block) ValidateBlock(previousBlock Block, difficulty uint, strategy digest.Strategy, evHandler func(v string, args ...any)) error {
	if evHandler == nil {
		evHandler = func(v string, args ...any) {}
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block number is the next number", b.Header.Number)

	nextNumber := previousBlock.Header.Number + 1
	if b.Header.Number != nextNumber {
		return fmt.Errorf("%w: this block is not the next number, got %d, exp %d", ErrInvalidBlock, b.Header.Number, nextNumber)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: parent hash does match parent block", b.Header.Number)

	if b.Header.PrevBlockHash != previousBlock.Hash {
		return fmt.Errorf("%w: parent block hash doesn't match our known parent, got %s, exp %s", ErrInvalidBlock, b.Header.PrevBlockHash, previousBlock.Hash)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block's timestamp is not before parent block's timestamp", b.Header.Number)

	if b.Header.TimeStamp < previousBlock.Header.TimeStamp {
		return fmt.Errorf("%w: block timestamp is before parent block, parent %d, block %d", ErrInvalidBlock, previousBlock.Header.TimeStamp, b.Header.TimeStamp)
	}

	return b.validateSeal(difficulty, strategy, evHandler)
}

// validateGenesis takes a block and validates it to be the first block of
// the blockchain.
func (b Block) validateGenesis(difficulty uint, strategy digest.Strategy, evHandler func(v string, args ...any)) error {
	evHandler("database: validateGenesis: validate: blk[%d]: check: genesis block", b.Header.Number)

	if b.Header.Number != 0 {
		return fmt.Errorf("%w: first block must be number 0, got %d", ErrInvalidBlock, b.Header.Number)
	}

	if b.Header.PrevBlockHash != digest.ZeroHash {
		return fmt.Errorf("%w: genesis parent hash must be the zero hash, got %s", ErrInvalidBlock, b.Header.PrevBlockHash)
	}

	if len(b.Trans) != 0 {
		return fmt.Errorf("%w: genesis block can't hold transactions, got %d", ErrInvalidBlock, len(b.Trans))
	}

	return b.validateSeal(difficulty, strategy, evHandler)
}

// validateSeal checks the merkle root, the hash and the proof of work.
func (b Block) validateSeal(difficulty uint, strategy digest.Strategy, evHandler func(v string, args ...any)) error {
	evHandler("database: validateSeal: validate: blk[%d]: check: merkle root and hash", b.Header.Number)

	if err := b.verifyHash(strategy); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBlock, err)
	}

	evHandler("database: validateSeal: validate: blk[%d]: check: block hash has been solved", b.Header.Number)

	if !pow.IsSolved(difficulty, b.Hash) {
		return fmt.Errorf("%w: %s hash doesn't solve difficulty %d", ErrInvalidBlock, b.Hash, difficulty)
	}

	return nil
}

// verifyHash recomputes the merkle root from the transactions and the hash
// from the header and compares both with the values stored in the block.
func (b Block) verifyHash(strategy digest.Strategy) error {
	root, err := MerkleRoot(strategy, b.Trans)
	if err != nil {
		return err
	}

	if root != b.Header.TransRoot {
		return fmt.Errorf("merkle root does not match transactions, got %s, exp %s", root, b.Header.TransRoot)
	}

	hash, err := b.Header.Hash(strategy)
	if err != nil {
		return fmt.Errorf("hashing header: %w", err)
	}

	if hash != b.Hash {
		return fmt.Errorf("block hash does not match header, got %s, exp %s", hash, b.Hash)
	}

	return nil
}

// clone returns a copy of the block that shares no memory with the original.
func (b Block) clone() Block {
	b.Trans = slices.Clone(b.Trans)
	return b
}

// =============================================================================

// BlockData represents what is written to storage. The fields are laid out
// in the same order they are hashed in.
type BlockData struct {
	Header BlockHeader `json:"block"`
	Trans  []Tx        `json:"trans"`
	Hash   string      `json:"hash"`
}

// NewBlockData constructs the value to serialize to storage.
func NewBlockData(block Block) BlockData {
	return BlockData{
		Header: block.Header,
		Trans:  slices.Clone(block.Trans),
		Hash:   block.Hash,
	}
}

// ToBlock converts a storage value into a Block.
func ToBlock(blockData BlockData) Block {
	return Block{
		Header: blockData.Header,
		Hash:   blockData.Hash,
		Trans:  slices.Clone(blockData.Trans),
	}
}
