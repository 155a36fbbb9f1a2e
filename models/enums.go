package models

import "fmt"

// LedgerAccount identifies one running-balance stream. Each payment rail keeps
// its own ordered ledger.
type LedgerAccount string

const (
	LedgerAccountCash   LedgerAccount = "Cash"
	LedgerAccountBank   LedgerAccount = "Bank"
	LedgerAccountShabka LedgerAccount = "Shabka"
)

// AllLedgerAccounts lists every account stream in the fixed lock-acquisition
// order used by the posting locks.
var AllLedgerAccounts = []LedgerAccount{LedgerAccountCash, LedgerAccountBank, LedgerAccountShabka}

func (a LedgerAccount) Valid() bool {
	switch a {
	case LedgerAccountCash, LedgerAccountBank, LedgerAccountShabka:
		return true
	}
	return false
}

type LedgerEntryKind string

const (
	LedgerEntryKindOpening LedgerEntryKind = "Opening"
	LedgerEntryKindInflow  LedgerEntryKind = "Inflow"
	LedgerEntryKindOutflow LedgerEntryKind = "Outflow"
)

func (k LedgerEntryKind) Valid() bool {
	switch k {
	case LedgerEntryKindOpening, LedgerEntryKindInflow, LedgerEntryKindOutflow:
		return true
	}
	return false
}

// RecordStatus marks soft deletion. Deleted rows stay queryable so audit
// history and balance replay remain correct.
type RecordStatus string

const (
	RecordStatusActive  RecordStatus = "active"
	RecordStatusDeleted RecordStatus = "deleted"
)

type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "Cash"
	PaymentMethodBank   PaymentMethod = "Bank"
	PaymentMethodShabka PaymentMethod = "Shabka"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBank, PaymentMethodShabka:
		return true
	}
	return false
}

// AccountForMethod maps a payment method to the ledger stream it settles on.
func AccountForMethod(m PaymentMethod) (LedgerAccount, error) {
	switch m {
	case PaymentMethodCash:
		return LedgerAccountCash, nil
	case PaymentMethodBank:
		return LedgerAccountBank, nil
	case PaymentMethodShabka:
		return LedgerAccountShabka, nil
	}
	return "", fmt.Errorf("invalid payment method: %s", string(m))
}

type InvoiceStatus string

const (
	InvoiceStatusUnpaid        InvoiceStatus = "Unpaid"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PartiallyPaid"
	InvoiceStatusPaid          InvoiceStatus = "Paid"
	InvoiceStatusDeleted       InvoiceStatus = "Deleted"
)

type VendorTransactionKind string

const (
	VendorTransactionKindPurchase VendorTransactionKind = "Purchase"
	VendorTransactionKindPayment  VendorTransactionKind = "Payment"
)

func (k VendorTransactionKind) Valid() bool {
	switch k {
	case VendorTransactionKindPurchase, VendorTransactionKindPayment:
		return true
	}
	return false
}

// ActorKind is the tagged half of the polymorphic actor reference: an actor is
// either a back-office User or an Employee.
type ActorKind string

const (
	ActorKindUser     ActorKind = "User"
	ActorKindEmployee ActorKind = "Employee"
)

func (k ActorKind) Valid() bool {
	switch k {
	case ActorKindUser, ActorKindEmployee:
		return true
	}
	return false
}

type AuditAction string

const (
	AuditActionCreate AuditAction = "CREATE"
	AuditActionUpdate AuditAction = "UPDATE"
	AuditActionDelete AuditAction = "DELETE"
	AuditActionLogin  AuditAction = "LOGIN"
	AuditActionLogout AuditAction = "LOGOUT"
)

type PayeeKind string

const (
	PayeeKindEmployee PayeeKind = "Employee"
	PayeeKindVendor   PayeeKind = "Vendor"
)

func (k PayeeKind) Valid() bool {
	switch k {
	case PayeeKindEmployee, PayeeKindVendor:
		return true
	}
	return false
}

type ExpenseCategory string

const (
	ExpenseCategoryGeneral           ExpenseCategory = "General"
	ExpenseCategorySalaries          ExpenseCategory = "Salaries"
	ExpenseCategoryCommissions       ExpenseCategory = "Commissions"
	ExpenseCategoryAdvancesRecovered ExpenseCategory = "AdvancesRecovered"
)

// Audit reference types: the table names of the tracked entities.
const (
	RefTypeLedgerEntry       = "ledger_entries"
	RefTypeInvoice           = "invoices"
	RefTypeInvoicePayment    = "invoice_payments"
	RefTypeAdvance           = "advances"
	RefTypeVendorTransaction = "vendor_transactions"
	RefTypeExpense           = "expenses"
	RefTypeSalesPerson       = "sales_persons"
)
