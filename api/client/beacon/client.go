// Package beacon provides a client for the subset of the beacon node HTTP API
// the collector needs: genesis data, the head root, the fork choice dump and
// committee sizes.
package beacon

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/forkwatchlabs/forkwatch/api/client"
	types "github.com/forkwatchlabs/forkwatch/consensus-types/primitives"
	"github.com/forkwatchlabs/forkwatch/snapshot"
	"github.com/pkg/errors"
)

const (
	getGenesisPath    = "/eth/v1/beacon/genesis"
	getHeadHeaderPath = "/eth/v1/beacon/headers/head"
	getForkChoicePath = "/eth/v1/debug/fork_choice"
	getCommitteesPath = "/eth/v1/beacon/states/head/committees"
)

// Client provides a collection of helper methods for calling the beacon node API.
type Client struct {
	*client.Client
}

// NewClient returns a new Client that includes functions for rest calls to beacon API.
func NewClient(host string, opts ...client.ClientOpt) (*Client, error) {
	c, err := client.NewClient(host, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{c}, nil
}

// Genesis returns the chain's genesis time.
func (c *Client) Genesis(ctx context.Context) (time.Time, error) {
	body, err := c.Get(ctx, getGenesisPath)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "error requesting genesis")
	}
	var resp genesisResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return time.Time{}, errors.Wrap(err, "error decoding genesis response")
	}
	ts, err := strconv.ParseInt(resp.Data.GenesisTime, 10, 64)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid genesis time %q", resp.Data.GenesisTime)
	}
	return time.Unix(ts, 0), nil
}

// HeadRoot returns the node's current head block root.
func (c *Client) HeadRoot(ctx context.Context) (types.Root, error) {
	body, err := c.Get(ctx, getHeadHeaderPath)
	if err != nil {
		return types.Root{}, errors.Wrap(err, "error requesting head header")
	}
	var resp headHeaderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return types.Root{}, errors.Wrap(err, "error decoding head header response")
	}
	return resp.Data.Root, nil
}

// ForkChoice returns the node's fork choice dump: the block tree it currently
// tracks with per-block accumulated weights, plus the justified and finalized
// checkpoints.
func (c *Client) ForkChoice(ctx context.Context) (*ForkChoiceDump, error) {
	body, err := c.Get(ctx, getForkChoicePath)
	if err != nil {
		return nil, errors.Wrap(err, "error requesting fork choice dump")
	}
	var resp forkChoiceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "error decoding fork choice response")
	}
	dump := &ForkChoiceDump{
		JustifiedCheckpoint: snapshot.Checkpoint{
			Epoch: resp.JustifiedCheckpoint.Epoch,
			Root:  resp.JustifiedCheckpoint.Root,
		},
		FinalizedCheckpoint: snapshot.Checkpoint{
			Epoch: resp.FinalizedCheckpoint.Epoch,
			Root:  resp.FinalizedCheckpoint.Root,
		},
	}
	for _, n := range resp.ForkChoiceNodes {
		dump.Blocks = append(dump.Blocks, snapshot.BlockNode{
			Slot:       n.Slot,
			Root:       n.BlockRoot,
			ParentRoot: n.ParentRoot,
			Weight:     n.Weight,
		})
	}
	return dump, nil
}

// CommitteeSize returns the total number of validators assigned to attest in
// the given slot, summed over the slot's committees.
func (c *Client) CommitteeSize(ctx context.Context, slot types.Slot) (uint64, error) {
	body, err := c.Get(ctx, getCommitteesPath,
		client.WithQuery("slot", strconv.FormatUint(uint64(slot), 10)))
	if err != nil {
		return 0, errors.Wrapf(err, "error requesting committees for slot %d", slot)
	}
	var resp committeesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, errors.Wrap(err, "error decoding committees response")
	}
	var size uint64
	for _, cm := range resp.Data {
		size += uint64(len(cm.Validators))
	}
	if size == 0 {
		return 0, errors.Errorf("no committees reported for slot %d", slot)
	}
	return size, nil
}
