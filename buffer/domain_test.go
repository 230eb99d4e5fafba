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

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNegotiateConsumerWins(t *testing.T) {
	srcMgr := NewGeneric(DefaultDomain, 64, 1)
	dstMgr := NewGeneric(DefaultDomain, 64, 1)

	got, err := Negotiate(DefaultDomain, DefaultDomain,
		func(Domain) (Manager, error) { return srcMgr, nil },
		func(Domain) (Manager, error) { return dstMgr, nil },
		nil)

	assert.NoError(t, err)
	assert.Same(t, dstMgr, got)
}

func TestNegotiateFallbackToProducerDefault(t *testing.T) {
	fallbackMgr := NewGeneric(DefaultDomain, 64, 1)

	got, err := Negotiate(DefaultDomain, DefaultDomain, nil, nil,
		func(Domain) Manager { return fallbackMgr })

	assert.NoError(t, err)
	assert.Same(t, fallbackMgr, got)
}

func TestNegotiateDomainIncompatible(t *testing.T) {
	_, err := Negotiate(Domain("cuda"), DefaultDomain,
		func(Domain) (Manager, error) { return nil, errors.New("no generic fallback for cuda") },
		nil,
		nil)

	var domErr *DomainError
	assert.ErrorAs(t, err, &domErr)
	assert.Equal(t, Domain("cuda"), domErr.SrcDomain)
}
