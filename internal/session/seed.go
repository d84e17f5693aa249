package session

// SeedFacts is the built-in crypto fact set used when no documents are given.
var SeedFacts = []string{
	"Bitcoin's supply is capped at 21 million coins.",
	"Ethereum enables smart contracts and NFTs.",
	"Lost your private key? Your crypto is gone forever!",
	"Proof of Stake is more eco-friendly than mining.",
	"Crypto transactions are public, but your name isn't.",
}
