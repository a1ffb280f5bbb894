package ledgertypes

import "errors"

// ErrGenesisNoTransactions is returned when a genesis block carries no
// transactions, so no genesis account can be inferred.
var ErrGenesisNoTransactions = errors.New("genesis block has no transactions")
