// Package checkout starts a hosted-checkout session with the payment
// processor.
package checkout

import (
	"fmt"
	"math/rand/v2"
	"net/url"
	"strconv"
	"sync"
	"time"
)

const referenceSuffixLength = 7

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

type Session struct {
	Reference   string `json:"reference"`
	CheckoutURL string `json:"checkoutUrl"`
}

// Service builds merchant references and checkout links. The reference is
// only a display and lookup aid; fulfillment keys on the transaction id.
type Service struct {
	checkoutURL *url.URL
	redirectURL string
	prefix      string

	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

func NewService(checkoutURL, appBaseURL, prefix string) (*Service, error) {
	u, err := url.Parse(checkoutURL)
	if err != nil {
		return nil, fmt.Errorf("invalid checkout url: %w", err)
	}
	return &Service{
		checkoutURL: u,
		redirectURL: appBaseURL + "/status",
		prefix:      prefix,
		rnd:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:         time.Now,
	}, nil
}

func (s *Service) NewSession() Session {
	ref := s.newReference()
	u := *s.checkoutURL
	q := u.Query()
	q.Set("reference", ref)
	q.Set("redirect-url", s.redirectURL)
	u.RawQuery = q.Encode()
	return Session{Reference: ref, CheckoutURL: u.String()}
}

func (s *Service) newReference() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	suffix := make([]byte, referenceSuffixLength)
	for i := range suffix {
		suffix[i] = base36[s.rnd.IntN(len(base36))]
	}
	return s.prefix + "-" + strconv.FormatInt(s.now().UnixMilli(), 10) + "-" + string(suffix)
}
