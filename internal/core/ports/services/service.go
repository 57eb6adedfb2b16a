package services

// ServiceContainer bundles every service facade so wiring can pass one value
// to the handler layer.
type ServiceContainer struct {
	Allocation AllocationSvcFacade
	Account    AccountSvcFacade
	Escrow     EscrowSvcFacade
	Loan       LoanSvcFacade
	AutoDeduct AutoDeductSvcFacade
	User       UserSvcFacade
	Dispatcher NotificationDispatcher
}
