package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"WyvernExchange/internal/exchange"
	"WyvernExchange/internal/order"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrMalformedCommand marks a payload that can never be applied. Such
// messages are acknowledged and reported, not redelivered.
var ErrMalformedCommand = errors.New("malformed command")

// Command names, one per subject suffix.
const (
	CommandApprove = "approve"
	CommandCancel  = "cancel"
	CommandMatch   = "match"
	CommandMatchEx = "match_ex"
	CommandConfig  = "config"
	CommandDeposit = "deposit"
)

// Command is a parsed request ready to be applied to the exchange.
type Command interface {
	Name() string
	// Caller is the account the command acts as; it must be the signer.
	Caller() order.AccountID
	Apply(ctx context.Context, x *exchange.Exchange) error
}

// ParseCommand converts a raw payload into a typed Command.
func ParseCommand(name string, data []byte) (Command, error) {
	var (
		cmd Command
		err error
	)
	switch name {
	case CommandApprove:
		cmd, err = parseApprove(data)
	case CommandCancel:
		cmd, err = parseCancel(data)
	case CommandMatch:
		cmd, err = parseMatch(data)
	case CommandMatchEx:
		cmd, err = parseMatchEx(data)
	case CommandConfig:
		cmd, err = parseConfig(data)
	case CommandDeposit:
		cmd, err = parseDeposit(data)
	default:
		return nil, fmt.Errorf("%w: unknown command %q", ErrMalformedCommand, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedCommand, name, err)
	}
	return cmd, nil
}

// --- JSON wire formats ---
// Account ids and byte strings are 0x hex, amounts are decimal strings.

type approveJSON struct {
	Caller                    string     `json:"caller"`
	Order                     order.JSON `json:"order"`
	OrderbookInclusionDesired bool       `json:"orderbook_inclusion_desired"`
}

type cancelJSON struct {
	Caller    string        `json:"caller"`
	Order     order.JSON    `json:"order"`
	Signature hexutil.Bytes `json:"signature"`
}

type matchJSON struct {
	Sender        string        `json:"sender"`
	MsgValue      string        `json:"msg_value"`
	Buy           order.JSON    `json:"buy"`
	BuySignature  hexutil.Bytes `json:"buy_signature"`
	Sell          order.JSON    `json:"sell"`
	SellSignature hexutil.Bytes `json:"sell_signature"`
	Metadata      hexutil.Bytes `json:"metadata"`
}

type matchExJSON struct {
	Sender                 string        `json:"sender"`
	MsgValue               string        `json:"msg_value"`
	Addrs                  []string      `json:"addrs"`
	Uints                  []uint64      `json:"uints"`
	Enums                  []uint8       `json:"enums"`
	CalldataBuy            hexutil.Bytes `json:"calldata_buy"`
	CalldataSell           hexutil.Bytes `json:"calldata_sell"`
	ReplacementPatternBuy  hexutil.Bytes `json:"replacement_pattern_buy"`
	ReplacementPatternSell hexutil.Bytes `json:"replacement_pattern_sell"`
	StaticExtradataBuy     hexutil.Bytes `json:"static_extradata_buy"`
	StaticExtradataSell    hexutil.Bytes `json:"static_extradata_sell"`
	BuySignature           hexutil.Bytes `json:"buy_signature"`
	SellSignature          hexutil.Bytes `json:"sell_signature"`
	Metadata               hexutil.Bytes `json:"metadata"`
}

type configJSON struct {
	Caller  string `json:"caller"`
	Action  string `json:"action"`
	Account string `json:"account,omitempty"`
	Fee     string `json:"fee,omitempty"`
}

type depositJSON struct {
	Caller   string `json:"caller"`
	Currency string `json:"currency"`
	Account  string `json:"account"`
	Amount   string `json:"amount"`
}

// --- Commands ---

type ApproveCommand struct {
	CallerID                  order.AccountID
	Order                     order.Order
	OrderbookInclusionDesired bool
}

func (c *ApproveCommand) Name() string            { return CommandApprove }
func (c *ApproveCommand) Caller() order.AccountID { return c.CallerID }

func (c *ApproveCommand) Apply(ctx context.Context, x *exchange.Exchange) error {
	return x.ApproveOrder(ctx, c.CallerID, &c.Order, c.OrderbookInclusionDesired)
}

type CancelCommand struct {
	CallerID  order.AccountID
	Order     order.Order
	Signature []byte
}

func (c *CancelCommand) Name() string            { return CommandCancel }
func (c *CancelCommand) Caller() order.AccountID { return c.CallerID }

func (c *CancelCommand) Apply(ctx context.Context, x *exchange.Exchange) error {
	return x.CancelOrder(ctx, c.CallerID, &c.Order, c.Signature)
}

// MatchCommand carries both the full and the compact match forms.
type MatchCommand struct {
	Compact bool
	Request exchange.MatchRequest
}

func (c *MatchCommand) Name() string {
	if c.Compact {
		return CommandMatchEx
	}
	return CommandMatch
}

func (c *MatchCommand) Caller() order.AccountID { return c.Request.Sender }

func (c *MatchCommand) Apply(ctx context.Context, x *exchange.Exchange) error {
	_, err := x.AtomicMatch(ctx, c.Request)
	return err
}

// ConfigCommand is one owner-only configuration change.
type ConfigCommand struct {
	CallerID order.AccountID
	Action  string
	Account order.AccountID
	Fee     order.Balance
}

// Config actions.
const (
	ActionChangeOwner                   = "change_owner"
	ActionChangeProtocolFeeRecipient    = "change_protocol_fee_recipient"
	ActionChangeMinimumMakerProtocolFee = "change_minimum_maker_protocol_fee"
	ActionChangeMinimumTakerProtocolFee = "change_minimum_taker_protocol_fee"
	ActionChangeExchangeToken           = "change_exchange_token"
)

func (c *ConfigCommand) Name() string            { return CommandConfig }
func (c *ConfigCommand) Caller() order.AccountID { return c.CallerID }

func (c *ConfigCommand) Apply(ctx context.Context, x *exchange.Exchange) error {
	switch c.Action {
	case ActionChangeOwner:
		return x.ChangeOwner(ctx, c.CallerID, c.Account)
	case ActionChangeProtocolFeeRecipient:
		return x.ChangeProtocolFeeRecipient(ctx, c.CallerID, c.Account)
	case ActionChangeMinimumMakerProtocolFee:
		return x.ChangeMinimumMakerProtocolFee(ctx, c.CallerID, c.Fee)
	case ActionChangeMinimumTakerProtocolFee:
		return x.ChangeMinimumTakerProtocolFee(ctx, c.CallerID, c.Fee)
	case ActionChangeExchangeToken:
		return x.ChangeExchangeToken(ctx, c.CallerID, c.Account)
	default:
		return fmt.Errorf("%w: unknown config action %q", ErrMalformedCommand, c.Action)
	}
}

type DepositCommand struct {
	CallerID order.AccountID
	Currency order.AccountID
	Account  order.AccountID
	Amount   order.Balance
}

func (c *DepositCommand) Name() string            { return CommandDeposit }
func (c *DepositCommand) Caller() order.AccountID { return c.CallerID }

func (c *DepositCommand) Apply(ctx context.Context, x *exchange.Exchange) error {
	return x.Deposit(ctx, c.CallerID, c.Currency, c.Account, c.Amount)
}

// --- Parsers ---

func parseApprove(data []byte) (*ApproveCommand, error) {
	var j approveJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	caller, err := parseAccount("caller", j.Caller)
	if err != nil {
		return nil, err
	}
	o, err := j.Order.Order()
	if err != nil {
		return nil, fmt.Errorf("order: %w", err)
	}
	return &ApproveCommand{CallerID: caller, Order: o, OrderbookInclusionDesired: j.OrderbookInclusionDesired}, nil
}

func parseCancel(data []byte) (*CancelCommand, error) {
	var j cancelJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	caller, err := parseAccount("caller", j.Caller)
	if err != nil {
		return nil, err
	}
	o, err := j.Order.Order()
	if err != nil {
		return nil, fmt.Errorf("order: %w", err)
	}
	return &CancelCommand{CallerID: caller, Order: o, Signature: j.Signature}, nil
}

func parseMatch(data []byte) (*MatchCommand, error) {
	var j matchJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	sender, err := parseAccount("sender", j.Sender)
	if err != nil {
		return nil, err
	}
	value, err := parseOptionalAmount("msg_value", j.MsgValue)
	if err != nil {
		return nil, err
	}
	buy, err := j.Buy.Order()
	if err != nil {
		return nil, fmt.Errorf("buy: %w", err)
	}
	sell, err := j.Sell.Order()
	if err != nil {
		return nil, fmt.Errorf("sell: %w", err)
	}
	return &MatchCommand{Request: exchange.MatchRequest{
		Sender:   sender,
		MsgValue: value,
		Buy:      buy,
		BuySig:   j.BuySignature,
		Sell:     sell,
		SellSig:  j.SellSignature,
		Metadata: j.Metadata,
	}}, nil
}

func parseMatchEx(data []byte) (*MatchCommand, error) {
	var j matchExJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	sender, err := parseAccount("sender", j.Sender)
	if err != nil {
		return nil, err
	}
	value, err := parseOptionalAmount("msg_value", j.MsgValue)
	if err != nil {
		return nil, err
	}

	var p order.PairParameters
	if len(j.Addrs) != len(p.Addrs) {
		return nil, fmt.Errorf("addrs: want %d, got %d", len(p.Addrs), len(j.Addrs))
	}
	if len(j.Uints) != len(p.Uints) {
		return nil, fmt.Errorf("uints: want %d, got %d", len(p.Uints), len(j.Uints))
	}
	if len(j.Enums) != len(p.Enums) {
		return nil, fmt.Errorf("enums: want %d, got %d", len(p.Enums), len(j.Enums))
	}
	for i, s := range j.Addrs {
		if p.Addrs[i], err = parseAccount(fmt.Sprintf("addrs[%d]", i), s); err != nil {
			return nil, err
		}
	}
	copy(p.Uints[:], j.Uints)
	copy(p.Enums[:], j.Enums)
	p.CalldataBuy, p.CalldataSell = j.CalldataBuy, j.CalldataSell
	p.ReplacementPatternBuy, p.ReplacementPatternSell = j.ReplacementPatternBuy, j.ReplacementPatternSell
	p.StaticExtradataBuy, p.StaticExtradataSell = j.StaticExtradataBuy, j.StaticExtradataSell

	buy, sell, err := order.BuildBuySell(&p)
	if err != nil {
		return nil, err
	}
	return &MatchCommand{Compact: true, Request: exchange.MatchRequest{
		Sender:   sender,
		MsgValue: value,
		Buy:      buy,
		BuySig:   j.BuySignature,
		Sell:     sell,
		SellSig:  j.SellSignature,
		Metadata: j.Metadata,
	}}, nil
}

func parseConfig(data []byte) (*ConfigCommand, error) {
	var j configJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	caller, err := parseAccount("caller", j.Caller)
	if err != nil {
		return nil, err
	}
	cmd := &ConfigCommand{CallerID: caller, Action: j.Action}

	switch j.Action {
	case ActionChangeOwner, ActionChangeProtocolFeeRecipient, ActionChangeExchangeToken:
		if cmd.Account, err = parseAccount("account", j.Account); err != nil {
			return nil, err
		}
	case ActionChangeMinimumMakerProtocolFee, ActionChangeMinimumTakerProtocolFee:
		if cmd.Fee, err = order.ParseBalance(j.Fee); err != nil {
			return nil, fmt.Errorf("fee: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown action %q", j.Action)
	}
	return cmd, nil
}

func parseDeposit(data []byte) (*DepositCommand, error) {
	var j depositJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	cmd := &DepositCommand{}
	var err error
	if cmd.CallerID, err = parseAccount("caller", j.Caller); err != nil {
		return nil, err
	}
	if cmd.Currency, err = parseAccount("currency", j.Currency); err != nil {
		return nil, err
	}
	if cmd.Account, err = parseAccount("account", j.Account); err != nil {
		return nil, err
	}
	if cmd.Amount, err = order.ParseBalance(j.Amount); err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	return cmd, nil
}

func parseAccount(field, s string) (order.AccountID, error) {
	id, err := order.ParseAccountID(s)
	if err != nil {
		return id, fmt.Errorf("%s: %w", field, err)
	}
	return id, nil
}

// parseOptionalAmount reads an absent amount as zero.
func parseOptionalAmount(field, s string) (order.Balance, error) {
	b, err := order.ParseBalance(s)
	if err != nil {
		return b, fmt.Errorf("%s: %w", field, err)
	}
	return b, nil
}
