package token

import (
	"errors"
	"testing"
	"time"

	"github.com/awadmin/awadmin-api-go/internal/model"
	"github.com/stretchr/testify/assert"
)

func newIssuer(t *testing.T) *Issuer {
	t.Helper()
	i, err := NewIssuer("test-secret", "awadmin", 5*time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return i
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	if _, err := NewIssuer("", "awadmin", time.Minute, time.Hour); err == nil {
		t.Error("expected an error for an empty secret")
	}
}

func TestIssueAndVerify(t *testing.T) {
	is := assert.New(t)
	i := newIssuer(t)

	pair, err := i.IssuePair(model.User{Username: "alice", IsStaff: true})
	is.Nil(err)

	claims, err := i.Verify(pair.Access, TypeAccess)
	is.Nil(err)
	is.Equal("alice", claims.Subject)
	is.True(claims.Staff)
	is.NotEmpty(claims.ID)

	_, err = i.Verify(pair.Refresh, TypeAccess)
	is.ErrorIs(err, ErrWrongType)

	_, err = i.Verify(pair.Access, TypeRefresh)
	is.ErrorIs(err, ErrWrongType)
}

func TestRefresh(t *testing.T) {
	is := assert.New(t)
	i := newIssuer(t)

	pair, err := i.IssuePair(model.User{Username: "bob"})
	is.Nil(err)

	access, err := i.Refresh(pair.Refresh)
	is.Nil(err)
	claims, err := i.Verify(access, TypeAccess)
	is.Nil(err)
	is.Equal("bob", claims.Subject)
	is.False(claims.Staff)

	_, err = i.Refresh(pair.Access)
	is.ErrorIs(err, ErrWrongType)
}

func TestVerifyExpired(t *testing.T) {
	is := assert.New(t)
	past := time.Now().Add(-time.Hour)
	i := newIssuer(t).WithClock(func() time.Time { return past })

	access, err := i.IssueAccess(model.User{Username: "carol"})
	is.Nil(err)

	_, err = newIssuer(t).Verify(access, TypeAccess)
	is.ErrorIs(err, ErrExpired)
}

func TestVerifyRejectsForeignTokens(t *testing.T) {
	is := assert.New(t)

	other, err := NewIssuer("other-secret", "awadmin", time.Minute, time.Hour)
	is.Nil(err)
	foreign, err := other.IssueAccess(model.User{Username: "mallory"})
	is.Nil(err)

	_, err = newIssuer(t).Verify(foreign, TypeAccess)
	is.True(errors.Is(err, ErrInvalid))

	wrongIssuer, err := NewIssuer("test-secret", "someone-else", time.Minute, time.Hour)
	is.Nil(err)
	token, err := wrongIssuer.IssueAccess(model.User{Username: "mallory"})
	is.Nil(err)
	_, err = newIssuer(t).Verify(token, TypeAccess)
	is.ErrorIs(err, ErrInvalid)

	_, err = newIssuer(t).Verify("not-a-jwt", TypeAccess)
	is.ErrorIs(err, ErrInvalid)
}
