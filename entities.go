package ledgeridx

import "fmt"

// Entity is a decoded account. The set of implementations is closed.
type Entity interface {
	Kind() Kind
	isEntity()
}

type Kind int

const (
	KindVault Kind = iota + 1
	KindSafetyDepositBox
	KindExternalPriceAccount
	KindMetadata
	KindEdition
	KindMasterEdition
	KindEditionMarker
	KindAuction
	KindAuctionExtended
	KindBidderMetadata
	KindBidderPot
	KindStore
	KindWhitelistedCreator
	KindPayoutTicket
	KindPrizeTrackingTicket
	KindAuctionManager
	KindBidRedemptionTicket
	KindSafetyDepositConfig
	KindMint
	KindStoreIndexer
	KindAuctionCache
)

var kindNames = map[Kind]string{
	KindVault:                "vault",
	KindSafetyDepositBox:     "safety_deposit_box",
	KindExternalPriceAccount: "external_price_account",
	KindMetadata:             "metadata",
	KindEdition:              "edition",
	KindMasterEdition:        "master_edition",
	KindEditionMarker:        "edition_marker",
	KindAuction:              "auction",
	KindAuctionExtended:      "auction_extended",
	KindBidderMetadata:       "bidder_metadata",
	KindBidderPot:            "bidder_pot",
	KindStore:                "store",
	KindWhitelistedCreator:   "whitelisted_creator",
	KindPayoutTicket:         "payout_ticket",
	KindPrizeTrackingTicket:  "prize_tracking_ticket",
	KindAuctionManager:       "auction_manager",
	KindBidRedemptionTicket:  "bid_redemption_ticket",
	KindSafetyDepositConfig:  "safety_deposit_config",
	KindMint:                 "mint",
	KindStoreIndexer:         "store_indexer",
	KindAuctionCache:         "auction_cache",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Parsed pairs a decoded entity with the account it came from.
type Parsed[E any] struct {
	Key      Pubkey
	Lamports uint64
	Slot     uint64
	Info     *E
}

// Vault program.

type VaultState uint8

const (
	VaultInactive VaultState = iota
	VaultActive
	VaultCombined
	VaultDeactivated
)

type Vault struct {
	TokenProgram              Pubkey
	FractionMint              Pubkey
	Authority                 Pubkey
	FractionTreasury          Pubkey
	RedeemTreasury            Pubkey
	AllowFurtherShareCreation bool
	PricingLookupAddress      Pubkey
	TokenTypeCount            uint8
	State                     VaultState
	LockedPricePerShare       uint64
}

type SafetyDepositBox struct {
	Vault     Pubkey
	TokenMint Pubkey
	Store     Pubkey
	Order     uint8
}

type ExternalPriceAccount struct {
	PricePerShare    uint64
	PriceMint        Pubkey
	AllowedToCombine bool
}

// Token metadata program.

type Creator struct {
	Address  Pubkey
	Verified bool
	Share    uint8
}

type Metadata struct {
	UpdateAuthority      Pubkey
	Mint                 Pubkey
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	Creators             []Creator // nil when absent
	PrimarySaleHappened  bool
	IsMutable            bool
	EditionNonce         *uint8
}

type Edition struct {
	Parent  Pubkey
	Edition uint64
}

// MasterEdition covers both layouts; the mints are only present in version 1.
type MasterEdition struct {
	Version                          uint8
	Supply                           uint64
	MaxSupply                        *uint64
	PrintingMint                     Pubkey
	OneTimePrintingAuthorizationMint Pubkey
}

type EditionMarker struct {
	Ledger [31]byte
}

// Auction program.

type AuctionState uint8

const (
	AuctionCreated AuctionState = iota
	AuctionStarted
	AuctionEnded
)

type PriceFloorType uint8

const (
	PriceFloorNone PriceFloorType = iota
	PriceFloorMinimum
	PriceFloorBlinded
)

type PriceFloor struct {
	Type PriceFloorType
	Hash [32]byte
}

func (pf PriceFloor) MinPrice() uint64 {
	if pf.Type != PriceFloorMinimum {
		return 0
	}
	r := makeLayoutReader(pf.Hash[:8])
	return r.U64()
}

type BidStateType uint8

const (
	BidStateEnglishAuction BidStateType = iota
	BidStateOpenEdition
)

type Bid struct {
	Key    Pubkey
	Amount uint64
}

type BidState struct {
	Type BidStateType
	Bids []Bid
	Max  uint64
}

type AuctionData struct {
	Authority    Pubkey
	TokenMint    Pubkey
	LastBid      *uint64
	EndedAt      *uint64
	EndAuctionAt *uint64
	AuctionGap   *uint64
	PriceFloor   PriceFloor
	State        AuctionState
	BidState     BidState
}

type AuctionDataExtended struct {
	TotalUncancelledBids  uint64
	TickSize              *uint64
	GapTickSizePercentage *uint8
}

type BidderMetadata struct {
	BidderPubkey     Pubkey
	AuctionPubkey    Pubkey
	LastBid          uint64
	LastBidTimestamp uint64
	Cancelled        bool
}

type BidderPot struct {
	BidderPot  Pubkey
	BidderAct  Pubkey
	AuctionAct Pubkey
	Emptied    bool
}

// Metaplex program.

type Store struct {
	Public               bool
	AuctionProgram       Pubkey
	TokenVaultProgram    Pubkey
	TokenMetadataProgram Pubkey
	TokenProgram         Pubkey
}

type WhitelistedCreator struct {
	Address   Pubkey
	Activated bool
}

type PayoutTicket struct {
	Recipient  Pubkey
	AmountPaid uint64
}

type PrizeTrackingTicket struct {
	Metadata            Pubkey
	SupplySnapshot      uint64
	ExpectedRedemptions uint64
	Redemptions         uint64
}

type AuctionManagerStatus uint8

const (
	AuctionManagerInitialized AuctionManagerStatus = iota
	AuctionManagerValidated
	AuctionManagerRunning
	AuctionManagerDisbursing
	AuctionManagerFinished
)

type AuctionManagerState struct {
	Status                     AuctionManagerStatus
	SafetyConfigItemsValidated uint64
	BidsPushedToAcceptPayment  uint64
	HasParticipation           bool
}

type AuctionManager struct {
	Store         Pubkey
	Authority     Pubkey
	Auction       Pubkey
	Vault         Pubkey
	AcceptPayment Pubkey
	State         AuctionManagerState
}

// BidRedemptionTicket covers both layouts. Version 1 only carries the
// redeemed counters; version 2 carries the winner, manager and bitmask.
type BidRedemptionTicket struct {
	Version               uint8
	ParticipationRedeemed bool
	ItemsRedeemed         uint8
	WinnerIndex           *uint64
	AuctionManager        Pubkey
	Redeemed              []byte
}

// IsRedeemed reports whether the prize with the given safety deposit order
// has been redeemed.
func (t *BidRedemptionTicket) IsRedeemed(order int) bool {
	if t.Version < 2 {
		return t.ItemsRedeemed > 0
	}
	i := order / 8
	if order < 0 || i >= len(t.Redeemed) {
		return false
	}
	return t.Redeemed[i]&(1<<(7-order%8)) != 0
}

type WinningConfigType uint8

const (
	WinningConfigTokenOnlyTransfer WinningConfigType = iota
	WinningConfigFullRightsTransfer
	WinningConfigPrintingV1
	WinningConfigPrintingV2
	WinningConfigParticipation
)

type AmountRange struct {
	Amount uint64
	Length uint64
}

type ParticipationConfig struct {
	WinnerConstraint     uint8
	NonWinningConstraint uint8
	FixedPrice           *uint64
}

type ParticipationState struct {
	CollectedToAcceptPayment uint64
}

type SafetyDepositConfig struct {
	AuctionManager      Pubkey
	Order               uint64
	WinningConfigType   WinningConfigType
	AmountType          uint8
	LengthType          uint8
	AmountRanges        []AmountRange
	ParticipationConfig *ParticipationConfig
	ParticipationState  *ParticipationState
}

// StoreIndexer is one page of a store's auction cache index.
type StoreIndexer struct {
	Store         Pubkey
	Page          uint64
	AuctionCaches []Pubkey
}

// AuctionCache bundles the accounts of one auction for quick listing.
type AuctionCache struct {
	Store          Pubkey
	Timestamp      int64
	Metadata       []Pubkey
	Auction        Pubkey
	Vault          Pubkey
	AuctionManager Pubkey
}

// MintInfo is the part of a token mint the engine classifies by.
type MintInfo struct {
	Mint          Pubkey
	Supply        uint64
	Decimals      uint8
	IsInitialized bool
}

func (m *MintInfo) IsFungible() bool {
	return m.Supply > 1 || m.Decimals != 0
}

func (*Vault) Kind() Kind                { return KindVault }
func (*SafetyDepositBox) Kind() Kind     { return KindSafetyDepositBox }
func (*ExternalPriceAccount) Kind() Kind { return KindExternalPriceAccount }
func (*Metadata) Kind() Kind             { return KindMetadata }
func (*Edition) Kind() Kind              { return KindEdition }
func (*MasterEdition) Kind() Kind        { return KindMasterEdition }
func (*EditionMarker) Kind() Kind        { return KindEditionMarker }
func (*AuctionData) Kind() Kind          { return KindAuction }
func (*AuctionDataExtended) Kind() Kind  { return KindAuctionExtended }
func (*BidderMetadata) Kind() Kind       { return KindBidderMetadata }
func (*BidderPot) Kind() Kind            { return KindBidderPot }
func (*Store) Kind() Kind                { return KindStore }
func (*WhitelistedCreator) Kind() Kind   { return KindWhitelistedCreator }
func (*PayoutTicket) Kind() Kind         { return KindPayoutTicket }
func (*PrizeTrackingTicket) Kind() Kind  { return KindPrizeTrackingTicket }
func (*AuctionManager) Kind() Kind       { return KindAuctionManager }
func (*BidRedemptionTicket) Kind() Kind  { return KindBidRedemptionTicket }
func (*SafetyDepositConfig) Kind() Kind  { return KindSafetyDepositConfig }
func (*MintInfo) Kind() Kind             { return KindMint }
func (*StoreIndexer) Kind() Kind         { return KindStoreIndexer }
func (*AuctionCache) Kind() Kind         { return KindAuctionCache }

func (*Vault) isEntity()                {}
func (*SafetyDepositBox) isEntity()     {}
func (*ExternalPriceAccount) isEntity() {}
func (*Metadata) isEntity()             {}
func (*Edition) isEntity()              {}
func (*MasterEdition) isEntity()        {}
func (*EditionMarker) isEntity()        {}
func (*AuctionData) isEntity()          {}
func (*AuctionDataExtended) isEntity()  {}
func (*BidderMetadata) isEntity()       {}
func (*BidderPot) isEntity()            {}
func (*Store) isEntity()                {}
func (*WhitelistedCreator) isEntity()   {}
func (*PayoutTicket) isEntity()         {}
func (*PrizeTrackingTicket) isEntity()  {}
func (*AuctionManager) isEntity()       {}
func (*BidRedemptionTicket) isEntity()  {}
func (*SafetyDepositConfig) isEntity()  {}
func (*MintInfo) isEntity()             {}
func (*StoreIndexer) isEntity()         {}
func (*AuctionCache) isEntity()         {}
