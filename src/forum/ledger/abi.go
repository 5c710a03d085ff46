package ledger

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const hubABIJSON = `[
 {"type":"function","name":"getProposalCountByState","stateMutability":"view","inputs":[{"name":"state","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"getProposals","stateMutability":"view","inputs":[{"name":"state","type":"uint256"},{"name":"offset","type":"uint256"},{"name":"count","type":"uint256"},{"name":"reverse","type":"bool"}],"outputs":[{"name":"","type":"address[]"}]},
 {"type":"function","name":"hasToken","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"gateComments","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"tokenContract1155","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"tokenId1155","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"createProposal","stateMutability":"nonpayable","inputs":[{"name":"title","type":"string"},{"name":"body","type":"string"},{"name":"voteStart","type":"uint256"},{"name":"voteEnd","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"setVotingWindow","stateMutability":"nonpayable","inputs":[{"name":"proposal","type":"address"},{"name":"voteStart","type":"uint256"},{"name":"voteEnd","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"setActiveByCreatorOrAdmin","stateMutability":"nonpayable","inputs":[{"name":"proposal","type":"address"},{"name":"active","type":"bool"}],"outputs":[]},
 {"type":"function","name":"syncProposalState","stateMutability":"nonpayable","inputs":[{"name":"proposal","type":"address"}],"outputs":[]},
 {"type":"function","name":"addComment","stateMutability":"nonpayable","inputs":[{"name":"proposal","type":"address"},{"name":"content","type":"string"},{"name":"sentiment","type":"uint8"}],"outputs":[{"name":"","type":"address"}]}
]`

const proposalABIJSON = `[
 {"type":"function","name":"title","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
 {"type":"function","name":"author","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"body","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
 {"type":"function","name":"createdAt","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"voteStart","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"voteEnd","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"votesFor","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"votesAgainst","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"state","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
 {"type":"function","name":"getComments","stateMutability":"view","inputs":[{"name":"offset","type":"uint256"},{"name":"count","type":"uint256"},{"name":"reverse","type":"bool"}],"outputs":[{"name":"","type":"address[]"}]}
]`

const commentABIJSON = `[
 {"type":"function","name":"author","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"content","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
 {"type":"function","name":"createdAt","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"deleted","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"sentiment","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

const erc1155ABIJSON = `[
 {"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"id","type":"uint256"},{"name":"amount","type":"uint256"},{"name":"data","type":"bytes"}],"outputs":[]}
]`

// legacyABIJSON is the pre-hub proposal contract, listed through its events.
const legacyABIJSON = `[
 {"type":"event","name":"ProposalSubmitted","anonymous":false,"inputs":[{"name":"user","type":"address","indexed":true},{"name":"proposal","type":"string","indexed":false}]},
 {"type":"function","name":"submitProposal","stateMutability":"nonpayable","inputs":[{"name":"proposal","type":"string"}],"outputs":[]}
]`

var (
	hubABI      = mustABI(hubABIJSON)
	proposalABI = mustABI(proposalABIJSON)
	commentABI  = mustABI(commentABIJSON)
	erc1155ABI  = mustABI(erc1155ABIJSON)
	legacyABI   = mustABI(legacyABIJSON)
)

func mustABI(src string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(src))
	if err != nil {
		panic("ledger: bad embedded abi: " + err.Error())
	}
	return parsed
}
