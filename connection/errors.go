package connection

import (
	"errors"

	"github.com/openspdm/spdm-go/spdmerr"
)

var (
	errNoCommonVersion    = spdmerr.New(spdmerr.Unsupported, "NegotiateVersion", errors.New("no common SPDM version"))
	errCertDigestMismatch = spdmerr.New(spdmerr.SecurityViolation, "GetCertificate", errors.New("certificate chain digest does not match DIGESTS"))
	errChallengeFailed    = spdmerr.New(spdmerr.SecurityViolation, "Challenge", errors.New("CHALLENGE_AUTH signature verification failed"))
	errMeasurementFailed  = spdmerr.New(spdmerr.SecurityViolation, "GetMeasurements", errors.New("MEASUREMENTS signature verification failed"))
	errSlotNotProvisioned = spdmerr.New(spdmerr.InvalidParameter, "GetCertificate", errors.New("requested slot has no certificate chain"))
)
