package session

import (
	"errors"

	"github.com/openspdm/spdm-go/spdmerr"
)

var (
	errSessionNotFound      = spdmerr.New(spdmerr.InvalidParameter, "Manager.get", errors.New("unknown session ID"))
	errSessionExists        = spdmerr.New(spdmerr.InvalidParameter, "Manager.put", errors.New("session ID already allocated"))
	errNotEstablished       = spdmerr.New(spdmerr.SessionRequired, "Manager.record", errors.New("record operation attempted before FINISH completed"))
	errFinishedMismatch     = spdmerr.New(spdmerr.SecurityViolation, "Finish", errors.New("verify data does not match the expected Finished MAC"))
	errPSKHintUnknown       = spdmerr.New(spdmerr.InvalidParameter, "HandlePSKExchange", errors.New("no PSK registered for the requested hint"))
	errKeyUpdateTagMismatch = spdmerr.New(spdmerr.SecurityViolation, "HandleKeyUpdate", errors.New("KEY_UPDATE_ACK tag does not match the outstanding request"))
	errKeyUpdateNotPending  = spdmerr.New(spdmerr.InvalidMessageField, "HandleKeyUpdate", errors.New("unknown KEY_UPDATE operation"))
	errNoSigningKey         = spdmerr.New(spdmerr.InvalidParameter, "EstablishSession", errors.New("mutual authentication requested but no local signing key is configured"))
	errAuthFailed           = spdmerr.New(spdmerr.SecurityViolation, "EstablishSession", errors.New("KEY_EXCHANGE_RSP or FINISH signature verification failed"))
)
