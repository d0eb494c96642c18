package domain

const (
	RoleCustomer = "CUSTOMER"
	RoleInvestor = "INVESTOR"
	RoleDesigner = "DESIGNER"
	RoleAdmin    = "ADMIN"
)

// Transaction types. The credit/debit class of each lives in
// service.Classify.
const (
	TxnCredit             = "credit"
	TxnDebit              = "debit"
	TxnDeposit            = "deposit"
	TxnTransfer           = "transfer"
	TxnPurchase           = "purchase"
	TxnRevenueShare       = "revenue_share"
	TxnCommission         = "commission"
	TxnRefund             = "refund"
	TxnRevenueReversal    = "revenue_reversal"
	TxnCommissionReversal = "commission_reversal"
	TxnInterest           = "interest"
)

const (
	TxnStatusCompleted           = "completed"
	TxnStatusPendingConfirmation = "pending_confirmation"
	TxnStatusConfirmed           = "confirmed"
	TxnStatusReversed            = "reversed"
)

const (
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
)

const (
	RefundStatusNone      = "none"
	RefundStatusRequested = "requested"
	RefundStatusRefunded  = "refunded"
	RefundStatusDenied    = "denied"
)

const (
	NotifRefundProcessed        = "REFUND_PROCESSED"
	NotifRevenueReversed        = "REVENUE_REVERSED"
	NotifCommissionReversed     = "COMMISSION_REVERSED"
	NotifInterestCredited       = "INTEREST_CREDITED"
	NotifTransferReceived       = "TRANSFER_RECEIVED"
	NotifOrderCancelled         = "ORDER_CANCELLED"
	NotifReversalNeedsAttention = "REVERSAL_NEEDS_ATTENTION"
)
