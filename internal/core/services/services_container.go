package services

import (
	portsrepo "github.com/stashpal/stashpal_backend/internal/core/ports/repositories"
	portssvc "github.com/stashpal/stashpal_backend/internal/core/ports/services"
	"github.com/stashpal/stashpal_backend/internal/platform/config"
)

// NewServiceContainer wires every service with its dependencies.
func NewServiceContainer(txManager portsrepo.TransactionManager, repos portsrepo.RepositoryProvider, cfg *config.Config) *portssvc.ServiceContainer {
	dispatcher := NewNotificationDispatcher(NewLogNotifier())
	escrowSvc := NewEscrowService(txManager, repos, cfg)

	return &portssvc.ServiceContainer{
		Allocation: NewAllocationService(repos.LedgerRepo, cfg),
		Account:    NewAccountService(repos.LedgerRepo, cfg),
		Escrow:     escrowSvc,
		Loan:       NewLoanService(repos, escrowSvc, cfg),
		AutoDeduct: NewAutoDeductService(repos, escrowSvc, dispatcher, BackoffFromConfig(cfg), cfg),
		User:       NewUserService(repos.UserRepo, cfg),
		Dispatcher: dispatcher,
	}
}
