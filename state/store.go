// Package state persists the pool's records on a key-value database. It
// satisfies the narrow state interfaces the native engines declare, so the
// same store backs the pool engine, the asset vault, the reserve tier and
// the lending facility.
package state

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"liquidpool/core/types"
	"liquidpool/crypto"
	"liquidpool/native/lending"
	"liquidpool/native/pool"
	"liquidpool/storage"
)

const (
	keyPool          = "pool/state"
	prefixAccount    = "pool/account/"
	prefixShares     = "pool/shares/"
	prefixRequest    = "pool/request/"
	prefixReqIndex   = "pool/reqindex/"
	prefixReqSlot    = "pool/reqslot/"
	keyActive        = "pool/active"
	prefixRolesGrant = "pool/roles/"
	keyWrapped       = "vault/wrapped"
	keyPrincipals    = "reserve/principals"
	keyLoanBook      = "lending/book"
)

// Store is a JSON-over-KV state adapter.
type Store struct {
	db storage.Database
}

func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

func addrKey(addr crypto.Address) string {
	return hex.EncodeToString(addr.Bytes())
}

func (s *Store) getJSON(key string, out any) (bool, error) {
	raw, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

func (s *Store) putJSON(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return s.db.Put([]byte(key), raw)
}

func (s *Store) PoolGet() (*pool.Pool, error) {
	var p pool.Pool
	ok, err := s.getJSON(keyPool, &p)
	if err != nil || !ok {
		return nil, err
	}
	return p.Normalize(), nil
}

func (s *Store) PoolPut(p *pool.Pool) error {
	return s.putJSON(keyPool, p.Normalize())
}

func (s *Store) GetAccount(addr crypto.Address) (*types.Account, error) {
	var account types.Account
	ok, err := s.getJSON(prefixAccount+addrKey(addr), &account)
	if err != nil || !ok {
		return nil, err
	}
	return account.Normalize(), nil
}

func (s *Store) PutAccount(addr crypto.Address, account *types.Account) error {
	return s.putJSON(prefixAccount+addrKey(addr), account.Normalize())
}

func (s *Store) SharesGet(addr crypto.Address) (*big.Int, error) {
	shares := new(big.Int)
	ok, err := s.getJSON(prefixShares+addrKey(addr), shares)
	if err != nil || !ok {
		return nil, err
	}
	return shares, nil
}

func (s *Store) SharesPut(addr crypto.Address, shares *big.Int) error {
	if shares == nil {
		shares = big.NewInt(0)
	}
	return s.putJSON(prefixShares+addrKey(addr), shares)
}

func (s *Store) RequestGet(id uint64) (*pool.WithdrawalRequest, error) {
	var req pool.WithdrawalRequest
	ok, err := s.getJSON(prefixRequest+strconv.FormatUint(id, 10), &req)
	if err != nil || !ok {
		return nil, err
	}
	return req.Normalize(), nil
}

func (s *Store) RequestPut(req *pool.WithdrawalRequest) error {
	if req == nil {
		return fmt.Errorf("state: nil withdrawal request")
	}
	return s.putJSON(prefixRequest+strconv.FormatUint(req.ID, 10), req.Normalize())
}

func (s *Store) RequestIndexGet(addr crypto.Address) ([]uint64, error) {
	var ids []uint64
	if _, err := s.getJSON(prefixReqIndex+addrKey(addr), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) RequestIndexPut(addr crypto.Address, ids []uint64) error {
	return s.putJSON(prefixReqIndex+addrKey(addr), ids)
}

func (s *Store) RequestSlotGet(id uint64) (uint64, bool, error) {
	var slot uint64
	ok, err := s.getJSON(prefixReqSlot+strconv.FormatUint(id, 10), &slot)
	if err != nil {
		return 0, false, err
	}
	return slot, ok, nil
}

func (s *Store) RequestSlotPut(id uint64, slot uint64) error {
	return s.putJSON(prefixReqSlot+strconv.FormatUint(id, 10), slot)
}

func (s *Store) RequestSlotDelete(id uint64) error {
	err := s.db.Delete([]byte(prefixReqSlot + strconv.FormatUint(id, 10)))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (s *Store) ActiveRequestsGet() ([]uint64, error) {
	var ids []uint64
	if _, err := s.getJSON(keyActive, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) ActiveRequestsPut(ids []uint64) error {
	return s.putJSON(keyActive, ids)
}

// WrappedSupplyGet reports the asset vault's outstanding wrapped supply.
func (s *Store) WrappedSupplyGet() (*big.Int, error) {
	supply := new(big.Int)
	ok, err := s.getJSON(keyWrapped, supply)
	if err != nil || !ok {
		return nil, err
	}
	return supply, nil
}

func (s *Store) WrappedSupplyPut(supply *big.Int) error {
	if supply == nil {
		supply = big.NewInt(0)
	}
	return s.putJSON(keyWrapped, supply)
}

// ReservePrincipalsGet reports the reserve tier's per-slot principal table.
func (s *Store) ReservePrincipalsGet() ([]*big.Int, error) {
	var principals []*big.Int
	if _, err := s.getJSON(keyPrincipals, &principals); err != nil {
		return nil, err
	}
	return principals, nil
}

func (s *Store) ReservePrincipalsPut(principals []*big.Int) error {
	return s.putJSON(keyPrincipals, principals)
}

// LoanBookGet reports the lending facility's persisted debt record.
func (s *Store) LoanBookGet() (*lending.LoanBook, error) {
	var book lending.LoanBook
	ok, err := s.getJSON(keyLoanBook, &book)
	if err != nil || !ok {
		return nil, err
	}
	return book.Normalize(), nil
}

func (s *Store) LoanBookPut(book *lending.LoanBook) error {
	return s.putJSON(keyLoanBook, book.Normalize())
}

// HasRole implements the role view on top of persisted grants, so grants
// survive a restart.
func (s *Store) HasRole(role string, addr [20]byte) bool {
	var granted bool
	ok, err := s.getJSON(prefixRolesGrant+role+"/"+hex.EncodeToString(addr[:]), &granted)
	if err != nil || !ok {
		return false
	}
	return granted
}

// GrantRole persists a role grant.
func (s *Store) GrantRole(role string, addr [20]byte) error {
	return s.putJSON(prefixRolesGrant+role+"/"+hex.EncodeToString(addr[:]), true)
}
