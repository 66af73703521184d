// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package smt

import (
	"bytes"
	"fmt"
	"math"

	"github.com/Fantom-foundation/monotree/backend/kv"
	"github.com/Fantom-foundation/monotree/common"
	"github.com/Fantom-foundation/monotree/common/digest"
	"go.uber.org/zap"
)

// Trie is a path compressed sparse Merkle trie over fixed length keys. The
// trie itself is stateless: every operation takes the root of the trie to
// operate on, and mutations return the root of the modified trie. Nodes are
// content addressed and never overwritten, so all roots returned by a trie
// remain valid and may be accessed concurrently.
//
// Tracking the current root is the responsibility of the caller, as is the
// synchronization of concurrent mutations deriving roots from each other.
type Trie struct {
	config Config
	hasher digest.Hasher
	store  kv.Store
	cache  *common.LruCache[common.Hash, Node]
	log    *zap.Logger
}

// Option customizes a Trie.
type Option func(*Trie)

// WithLogger sets the logger used for reporting trie updates.
func WithLogger(log *zap.Logger) Option {
	return func(t *Trie) {
		t.log = log
	}
}

// WithHasher overrides the hasher derived from the configured algorithm.
func WithHasher(hasher digest.Hasher) Option {
	return func(t *Trie) {
		t.hasher = hasher
	}
}

// NewTrie creates a trie persisting its nodes in the given store.
func NewTrie(config Config, store kv.Store, options ...Option) (*Trie, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	res := &Trie{
		config: config,
		hasher: config.Hashing.NewHasher(),
		store:  store,
		log:    zap.NewNop(),
	}
	if config.NodeCacheSize > 0 {
		res.cache = common.NewLruCache[common.Hash, Node](config.NodeCacheSize)
	}
	for _, option := range options {
		option(res)
	}
	return res, nil
}

func (t *Trie) Config() Config {
	return t.config
}

func (t *Trie) Hasher() digest.Hasher {
	return t.hasher
}

// Get looks up the value associated with the key in the trie with the given
// root. A nil root denotes the empty trie.
func (t *Trie) Get(root *common.Hash, key []byte) (common.Hash, bool, error) {
	if err := t.checkKey(key); err != nil {
		return common.Hash{}, false, err
	}
	if root == nil {
		return common.Hash{}, false, nil
	}
	path, err := descend(t, t.config.keyBits(), *root, key)
	if err != nil {
		return common.Hash{}, false, err
	}
	if path.leaf == nil || !bytes.Equal(path.leaf.Key, key) {
		return common.Hash{}, false, nil
	}
	return path.leaf.Value, true, nil
}

// Insert associates the value with the key in the trie with the given root,
// replacing any previously associated value. All new nodes are written to
// the store in a single batch. The root of the updated trie is returned.
func (t *Trie) Insert(root *common.Hash, key []byte, value common.Hash) (common.Hash, error) {
	if err := t.checkKey(key); err != nil {
		return common.Hash{}, err
	}
	update := t.newUpdate()
	newRoot, err := update.insert(root, key, value)
	if err != nil {
		return common.Hash{}, err
	}
	if err := t.commit(update, root, newRoot); err != nil {
		return common.Hash{}, err
	}
	return *newRoot, nil
}

// Remove deletes the key from the trie with the given root. Removing a key
// not present in the trie is a no-op returning the unmodified root. If the
// trie becomes empty, nil is returned.
func (t *Trie) Remove(root *common.Hash, key []byte) (*common.Hash, error) {
	if err := t.checkKey(key); err != nil {
		return nil, err
	}
	update := t.newUpdate()
	newRoot, err := update.remove(root, key)
	if err != nil {
		return nil, err
	}
	if err := t.commit(update, root, newRoot); err != nil {
		return nil, err
	}
	return newRoot, nil
}

// Apply performs a list of changes on the trie with the given root. Changes
// are applied in key order, where for each key only the last change listed
// is considered. Intermediate nodes are kept in memory and only the nodes
// of the resulting trie are written to the store, in a single batch.
func (t *Trie) Apply(root *common.Hash, changes []Change) (*common.Hash, error) {
	for _, change := range changes {
		if err := t.checkKey(change.Key); err != nil {
			return nil, err
		}
	}
	update := t.newUpdate()
	cur := root
	for _, change := range normalizeChanges(changes) {
		var err error
		if change.IsRemoval() {
			cur, err = update.remove(cur, change.Key)
		} else {
			cur, err = update.insert(cur, change.Key, *change.Value)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := t.commit(update, root, cur); err != nil {
		return nil, err
	}
	return cur, nil
}

func (t *Trie) commit(update *update, oldRoot, newRoot *common.Hash) error {
	if common.HashPtrEqual(oldRoot, newRoot) {
		return nil
	}
	written, err := update.commit(newRoot)
	if err != nil {
		return err
	}
	t.log.Debug("trie updated",
		zap.String("old", formatRoot(oldRoot)),
		zap.String("new", formatRoot(newRoot)),
		zap.Int("nodes", written),
	)
	return nil
}

func (t *Trie) checkKey(key []byte) error {
	if len(key) != t.config.KeyLength {
		return fmt.Errorf("%w: wanted %d bytes, got %d", ErrKeyLengthMismatch, t.config.KeyLength, len(key))
	}
	return nil
}

func formatRoot(root *common.Hash) string {
	if root == nil {
		return "empty"
	}
	return root.String()
}

// frame is a branch node passed while descending the trie.
type frame struct {
	hash      common.Hash
	branch    *BranchNode
	position  int  // the branching bit of the node
	direction byte // the child followed
}

// descent is the path from the root to the position of a key in the trie.
type descent struct {
	frames []frame
	// The leaf reached at the end of the path, or nil if the path ended in an
	// absent child of the last frame.
	leaf     *LeafNode
	leafHash common.Hash
}

// descend follows the bits of the key starting at the given root until
// reaching a leaf or an absent child. Bits skipped by branch nodes are not
// inspected, thus the reached leaf may have a different key.
func descend(source nodeSource, keyBits int, root common.Hash, key []byte) (descent, error) {
	res := descent{}
	cur := root
	position := -1
	for {
		node, err := source.getNode(cur)
		if err != nil {
			return res, err
		}
		switch n := node.(type) {
		case *LeafNode:
			if len(n.Key) != len(key) {
				return res, fmt.Errorf("%w: leaf %v has key of length %d, wanted %d", ErrCorruptNode, cur, len(n.Key), len(key))
			}
			res.leaf = n
			res.leafHash = cur
			return res, nil
		case *BranchNode:
			position = n.branchingBit(position)
			if position >= keyBits {
				return res, fmt.Errorf("%w: branch %v is branching on bit %d of %d bit keys", ErrCorruptNode, cur, position, keyBits)
			}
			direction := getBit(key, position)
			res.frames = append(res.frames, frame{
				hash:      cur,
				branch:    n,
				position:  position,
				direction: direction,
			})
			next := n.getChild(direction)
			if next == nil {
				return res, nil
			}
			cur = *next
		default:
			return res, fmt.Errorf("%w: unsupported node type %T", ErrCorruptNode, node)
		}
	}
}

func (u *update) insert(root *common.Hash, key []byte, value common.Hash) (*common.Hash, error) {
	if root == nil {
		hash := u.addNode(newLeafNode(key, value))
		return &hash, nil
	}
	path, err := descend(u, u.trie.config.keyBits(), *root, key)
	if err != nil {
		return nil, err
	}

	// The key's slot is empty, the new leaf can be placed there.
	if path.leaf == nil {
		leaf := u.addNode(newLeafNode(key, value))
		return u.rebuild(path.frames, leaf), nil
	}

	// The key is already present, only the value needs to be replaced.
	if bytes.Equal(path.leaf.Key, key) {
		if path.leaf.Value == value {
			return root, nil
		}
		leaf := u.addNode(newLeafNode(key, value))
		return u.rebuild(path.frames, leaf), nil
	}

	// A different key has been reached. All keys in the subtree of the first
	// frame branching after the first differing bit share the reached leaf's
	// bits up to that frame, so a new branch needs to be placed above it.
	split := firstDifferingBit(key, path.leaf.Key)
	pos := 0
	for pos < len(path.frames) && path.frames[pos].position < split {
		pos++
	}
	parent := -1
	if pos > 0 {
		parent = path.frames[pos-1].position
	}
	if pos < len(path.frames) && path.frames[pos].position == split {
		return nil, fmt.Errorf("%w: leaf %v disagrees with its path at bit %d", ErrCorruptNode, path.leafHash, split)
	}

	var displaced common.Hash
	if pos < len(path.frames) {
		f := path.frames[pos]
		moved := *f.branch
		moved.Skip = uint16(f.position - split - 1)
		displaced = u.addNode(&moved)
	} else {
		displaced = path.leafHash
	}

	leaf := u.addNode(newLeafNode(key, value))
	direction := getBit(key, split)
	branch := &BranchNode{Skip: uint16(split - parent - 1)}
	branch = branch.withChild(direction, &leaf).withChild(1-direction, &displaced)
	return u.rebuild(path.frames[:pos], u.addNode(branch)), nil
}

// rebuild re-creates the branch nodes of the given frames bottom-up after
// the child of the last frame has been replaced.
func (u *update) rebuild(frames []frame, child common.Hash) *common.Hash {
	cur := child
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		cur = u.addNode(f.branch.withChild(f.direction, &cur))
	}
	return &cur
}

func (u *update) remove(root *common.Hash, key []byte) (*common.Hash, error) {
	if root == nil {
		return nil, nil
	}
	path, err := descend(u, u.trie.config.keyBits(), *root, key)
	if err != nil {
		return nil, err
	}
	if path.leaf == nil || !bytes.Equal(path.leaf.Key, key) {
		return root, nil
	}

	// Remove the leaf and rebuild the path bottom-up. Branches left with a
	// single child are replaced by this child.
	var cur *common.Hash
	for i := len(path.frames) - 1; i >= 0; i-- {
		f := path.frames[i]
		branch := f.branch.withChild(f.direction, cur)
		switch branch.numChildren() {
		case 0:
			cur = nil
		case 1:
			cur, err = u.collapse(branch)
			if err != nil {
				return nil, err
			}
		default:
			hash := u.addNode(branch)
			cur = &hash
		}
	}
	return cur, nil
}

// collapse eliminates a branch node with a single child. Leaves are position
// independent and can be moved up unchanged. Branches move up by extending
// their skip by the bits skipped by the eliminated branch and its branching
// bit.
func (u *update) collapse(branch *BranchNode) (*common.Hash, error) {
	child := branch.Left
	if child == nil {
		child = branch.Right
	}
	node, err := u.getNode(*child)
	if err != nil {
		return nil, err
	}
	switch n := node.(type) {
	case *LeafNode:
		return cloneHash(child), nil
	case *BranchNode:
		skip := int(branch.Skip) + 1 + int(n.Skip)
		if skip > math.MaxUint16 {
			return nil, fmt.Errorf("%w: merged skip %d exceeds limit", ErrCorruptNode, skip)
		}
		merged := *n
		merged.Skip = uint16(skip)
		hash := u.addNode(&merged)
		return &hash, nil
	}
	return nil, fmt.Errorf("%w: unsupported node type %T", ErrCorruptNode, node)
}
