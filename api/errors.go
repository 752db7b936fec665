// Copyright 2025 The go-ezchain Authors
// This file is part of the go-ezchain library.
//
// The go-ezchain library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ezchain library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ezchain library. If not, see <http://www.gnu.org/licenses/>.

package api

// Error codes form a closed set: every error response carries exactly
// one of these tokens, and clients may switch on them.
const (
	CodeUnauthorized         = "unauthorized"
	CodePayloadTooLarge      = "payload_too_large"
	CodeInvalidContentLength = "invalid_content_length"
	CodeInvalidRequest       = "invalid_request"
	CodePasswordRequired     = "password_required"
	CodeWalletNotFound       = "wallet_not_found"
	CodeNonceRequired        = "nonce_required"
	CodeInvalidNonceFormat   = "invalid_nonce_format"
	CodeInvalidClientTxID    = "invalid_client_tx_id"
	CodeReplayDetected       = "replay_detected"
	CodeDuplicateTransaction = "duplicate_transaction"
	CodeAmountMustBePositive = "amount_must_be_positive"
	CodeAmountExceedsLimit   = "amount_exceeds_limit"
	CodeRecipientRequired    = "recipient_required"
	CodeInsufficientBalance  = "insufficient_balance"
	CodeSendFailed           = "send_failed"
	CodeBalanceFailed        = "balance_failed"
	CodeInternalError        = "internal_error"
	CodeNotFound             = "not_found"
	CodeHTTPError            = "http_error"
)

type errorSpec struct {
	status  int
	message string
}

// errorTable maps each code to its HTTP status and default message.
var errorTable = map[string]errorSpec{
	CodeUnauthorized:         {401, "missing or invalid API token"},
	CodePayloadTooLarge:      {413, "request body exceeds the configured limit"},
	CodeInvalidContentLength: {400, "Content-Length header is required"},
	CodeInvalidRequest:       {400, "request body is not valid JSON"},
	CodePasswordRequired:     {400, "X-EZ-Password header is required"},
	CodeWalletNotFound:       {404, "no wallet exists yet"},
	CodeNonceRequired:        {400, "X-EZ-Nonce header is required"},
	CodeInvalidNonceFormat:   {400, "nonce must be printable ASCII of bounded length"},
	CodeInvalidClientTxID:    {400, "client_tx_id must be bounded ASCII without spaces"},
	CodeReplayDetected:       {409, "nonce was already used within its TTL"},
	CodeDuplicateTransaction: {409, "client_tx_id was already submitted"},
	CodeAmountMustBePositive: {400, "amount must be positive"},
	CodeAmountExceedsLimit:   {400, "amount exceeds the per-transaction limit"},
	CodeRecipientRequired:    {400, "recipient is required"},
	CodeInsufficientBalance:  {400, "insufficient balance"},
	CodeSendFailed:           {500, "transaction submission failed"},
	CodeBalanceFailed:        {500, "balance lookup failed"},
	CodeInternalError:        {500, "internal error"},
	CodeNotFound:             {404, "no such route"},
	CodeHTTPError:            {500, "http error"},
}
