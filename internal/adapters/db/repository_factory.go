package db

import (
	"heelbid-auction-service/internal/ports/outbound"
)

// Repositories bundles every repository for dependency injection
type Repositories struct {
	Auctions      outbound.AuctionRepository
	Bids          outbound.BidRepository
	Notifications outbound.NotificationRepository
	Profiles      outbound.ProfileRepository
}

// RepositoryFactory creates and manages all database repositories
type RepositoryFactory struct {
	conn *Connection
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(conn *Connection) *RepositoryFactory {
	return &RepositoryFactory{conn: conn}
}

// GetAllRepositories returns all repositories backed by the connection
func (f *RepositoryFactory) GetAllRepositories() Repositories {
	return Repositories{
		Auctions:      NewAuctionRepository(f.conn),
		Bids:          NewBidRepository(f.conn),
		Notifications: NewNotificationRepository(f.conn),
		Profiles:      NewProfileRepository(f.conn),
	}
}
