package buffer

/*
   Copyright 2018 Bruno Moura <brunotm@gmail.com>

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

import "fmt"

// DomainError reports that a producer and consumer could not agree on a
// buffer manager for a flow (spec 4.1, resolution rule 4).
type DomainError struct {
	SrcDomain Domain
	DstDomain Domain
	Reason    string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("domain incompatible: producer=%s consumer=%s: %s", e.SrcDomain, e.DstDomain, e.Reason)
}

// Provider is implemented by a block to (optionally) supply a buffer
// manager for one of its ports, given the peer's domain. Returning
// (nil, nil) means "defer to peer"; returning a non-nil error means
// "domain-incompatible".
type Provider func(peerDomain Domain) (Manager, error)

// Negotiate resolves the buffer manager for a flow given the producer's and
// consumer's optional Provider callbacks, following spec 4.1's ordered
// resolution rule. fallback supplies the producer domain's default manager
// when neither side opts in.
func Negotiate(srcDomain, dstDomain Domain, srcProvide, dstProvide Provider, fallback func(Domain) Manager) (Manager, error) {
	var srcMgr, dstMgr Manager
	var err error

	if srcProvide != nil {
		if srcMgr, err = srcProvide(dstDomain); err != nil {
			return nil, &DomainError{SrcDomain: srcDomain, DstDomain: dstDomain, Reason: err.Error()}
		}
	}
	if dstProvide != nil {
		if dstMgr, err = dstProvide(srcDomain); err != nil {
			return nil, &DomainError{SrcDomain: srcDomain, DstDomain: dstDomain, Reason: err.Error()}
		}
	}

	switch {
	case srcMgr != nil && dstMgr != nil:
		// Rule 2: both sides offered one, the consumer-provided manager wins
		// because it knows what the consumer can cheaply read.
		return dstMgr, nil
	case dstMgr != nil:
		return dstMgr, nil
	case srcMgr != nil:
		return srcMgr, nil
	default:
		// Rule 3: neither side opted in, install the producer domain's default.
		if fallback == nil {
			return nil, &DomainError{SrcDomain: srcDomain, DstDomain: dstDomain, Reason: "no default manager available"}
		}
		return fallback(srcDomain), nil
	}
}
