package services

import (
	"context"

	"stitchmart/internal/common"
	"stitchmart/internal/models"
	"stitchmart/internal/repositories"
)

const dashboardTopN = 5

type DashboardService interface {
	Stats(ctx context.Context) (*models.DashboardStats, error)
}

type dashboardService struct {
	users        repositories.UserRepository
	designs      repositories.DesignRepository
	transactions repositories.TransactionRepository
}

func NewDashboardService(users repositories.UserRepository, designs repositories.DesignRepository, transactions repositories.TransactionRepository) DashboardService {
	return &dashboardService{users: users, designs: designs, transactions: transactions}
}

func (s *dashboardService) Stats(ctx context.Context) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{}
	var err error

	if stats.TotalUsers, err = s.users.Count(ctx); err != nil {
		return nil, common.Upstream("count users", err)
	}
	if stats.TotalDesigns, err = s.designs.Count(ctx, models.DesignFilter{}); err != nil {
		return nil, common.Upstream("count designs", err)
	}
	if stats.TotalSales, stats.TotalRevenue, err = s.transactions.Totals(ctx, models.TransactionCompleted); err != nil {
		return nil, common.Upstream("sum sales", err)
	}

	top, err := s.designs.Find(ctx, models.DesignFilter{
		Sort:  []models.SortKey{{Field: models.SortSales, Desc: true}},
		Limit: dashboardTopN,
	})
	if err != nil {
		return nil, common.Upstream("top designs", err)
	}
	stats.TopDesigns = make([]models.DesignSummary, 0, len(top))
	for _, d := range top {
		stats.TopDesigns = append(stats.TopDesigns, d.Summary())
	}

	recent, err := s.transactions.ListRecent(ctx, models.TransactionCompleted, dashboardTopN)
	if err != nil {
		return nil, common.Upstream("recent transactions", err)
	}
	if stats.RecentTransactions, err = purchases(ctx, s.designs, s.users, recent); err != nil {
		return nil, err
	}
	return stats, nil
}
