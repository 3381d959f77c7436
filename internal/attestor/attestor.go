package attestor

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/greenledger/verification-service/internal/models"
	"github.com/greenledger/verification-service/pkg/logger"
	"go.uber.org/zap"
)

// Client publishes finalized verification outcomes to the downstream
// reward contract. Reward logic only ever reads these attested tuples;
// it never writes back into the verification store.
type Client struct {
	client          *ethclient.Client
	contractAddress common.Address
	privateKey      *ecdsa.PrivateKey
	chainID         *big.Int
}

// NewClient creates a new attestation client.
func NewClient(rpcURL, contractAddr, privateKeyHex string) (*Client, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain node: %w", err)
	}

	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	chainID, err := client.ChainID(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	return &Client{
		client:          client,
		contractAddress: common.HexToAddress(contractAddr),
		privateKey:      privateKey,
		chainID:         chainID,
	}, nil
}

// OutcomeDigest hashes the finalized tuple published for an activity.
func OutcomeDigest(activityID uint, reporter string, status models.ActivityStatus, confidence uint8) common.Hash {
	message := fmt.Sprintf("%d:%s:%s:%d", activityID, reporter, status, confidence)
	return crypto.Keccak256Hash([]byte(message))
}

// SignOutcome signs the outcome digest with the attestor key.
func (c *Client) SignOutcome(activityID uint, reporter string, status models.ActivityStatus, confidence uint8) (string, error) {
	digest := OutcomeDigest(activityID, reporter, status, confidence)

	signature, err := crypto.Sign(digest.Bytes(), c.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign outcome: %w", err)
	}

	return hex.EncodeToString(signature), nil
}

// VerifyOutcomeSignature checks that a signature over an outcome digest
// was produced by this attestor's key.
func (c *Client) VerifyOutcomeSignature(activityID uint, reporter string, status models.ActivityStatus, confidence uint8, signatureHex string) (bool, error) {
	signature, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false, fmt.Errorf("malformed signature: %w", err)
	}

	digest := OutcomeDigest(activityID, reporter, status, confidence)
	pubKey, err := crypto.SigToPub(digest.Bytes(), signature)
	if err != nil {
		return false, fmt.Errorf("failed to recover public key: %w", err)
	}

	recoveredAddr := crypto.PubkeyToAddress(*pubKey)
	expectedAddr := crypto.PubkeyToAddress(*c.privateKey.Public().(*ecdsa.PublicKey))

	return recoveredAddr == expectedAddr, nil
}

// PublishOutcome submits a signed finalized outcome to the reward
// contract and returns the signature hex.
func (c *Client) PublishOutcome(ctx context.Context, activityID uint, reporter string, status models.ActivityStatus, confidence uint8) (string, error) {
	signature, err := c.SignOutcome(activityID, reporter, status, confidence)
	if err != nil {
		return "", err
	}

	auth, err := bind.NewKeyedTransactorWithChainID(c.privateKey, c.chainID)
	if err != nil {
		return "", fmt.Errorf("failed to create transactor: %w", err)
	}

	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get gas price: %w", err)
	}
	auth.Value = big.NewInt(0)
	auth.GasLimit = uint64(200000)
	auth.GasPrice = gasPrice

	logger.Info("Publishing verification outcome",
		zap.Uint("activityID", activityID),
		zap.String("reporter", reporter),
		zap.String("status", string(status)),
		zap.Uint8("confidence", confidence),
	)

	// TODO: call the reward contract through its generated binding once
	// the contract ABI is frozen. Until then outcomes are signed and
	// recorded but the on-chain write is a no-op.

	return signature, nil
}

// HealthCheck verifies the chain connection.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.client.BlockNumber(ctx); err != nil {
		return fmt.Errorf("attestor health check failed: %w", err)
	}
	return nil
}

// Close closes the client connection.
func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}
