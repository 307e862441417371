package redis

// Key layout shared with the existing data set.

func playerKey(playerID string) string {
	return "player:" + playerID
}

func cityKey(playerID string) string {
	return "city:" + playerID + ":buildings"
}

func worldKey(playerID string) string {
	return "city:" + playerID + ":world"
}

func ledgerKey(playerID string) string {
	return "ledger:" + playerID
}

func receiptKey(playerID, op, token string) string {
	return "idempo:" + playerID + ":" + op + ":" + token
}
