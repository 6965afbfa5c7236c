package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"direct_chat_service/internal/member/domain"
)

const defaultDirectoryLimit = 100

// MemberRepository definition get Member info
type MemberRepository interface {
	FindByMember(ctx context.Context, memberQuery *domain.MemberQuery) (*domain.Member, error)
	// ListMembers reachable members ordered by email
	ListMembers(ctx context.Context, q *domain.DirectoryQuery) ([]*domain.Member, error)
}

type memberRepository struct {
	db *pgxpool.Pool
}

// NewMemberRepository create a MemberRepository
func NewMemberRepository(db *pgxpool.Pool) MemberRepository {
	return &memberRepository{db: db}
}

const memberColumns = "id, member_id, email, COALESCE(display_name, ''), COALESCE(avatar_url, ''), status"

func scanMember(row pgx.Row) (*domain.Member, error) {
	var member domain.Member
	err := row.Scan(&member.ID, &member.MemberID, &member.Email, &member.DisplayName, &member.AvatarURL, &member.Status)
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *memberRepository) FindByMember(ctx context.Context, memberQuery *domain.MemberQuery) (*domain.Member, error) {
	queryStr := "SELECT " + memberColumns + " FROM member WHERE 1=1"
	params := []interface{}{}
	paramCount := 1

	if memberQuery.Email != nil {
		queryStr += fmt.Sprintf(" AND email = $%d", paramCount)
		params = append(params, *memberQuery.Email)
		paramCount++
	}
	if memberQuery.MemberID != nil {
		queryStr += fmt.Sprintf(" AND member_id = $%d", paramCount)
		params = append(params, *memberQuery.MemberID)
		paramCount++
	}
	if memberQuery.ID != nil {
		queryStr += fmt.Sprintf(" AND id = $%d", paramCount)
		params = append(params, *memberQuery.ID)
	}

	member, err := scanMember(r.db.QueryRow(ctx, queryStr, params...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMemberNotFound
		}
		return nil, err
	}

	return member, nil
}

func (r *memberRepository) ListMembers(ctx context.Context, q *domain.DirectoryQuery) ([]*domain.Member, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultDirectoryLimit
	}

	queryStr := "SELECT " + memberColumns + " FROM member WHERE status NOT IN ($1, $2) AND member_id <> $3"
	params := []interface{}{int(domain.MemberStatusBan), int(domain.MemberStatusDelete), q.ExcludeMemberID}
	if search := strings.TrimSpace(q.EmailContains); search != "" {
		queryStr += " AND email ILIKE $4"
		params = append(params, "%"+escapeLike(search)+"%")
	}
	queryStr += fmt.Sprintf(" ORDER BY email ASC LIMIT %d", limit)

	rows, err := r.db.Query(ctx, queryStr, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []*domain.Member{}
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

// escapeLike 跳脫 LIKE 的萬用字元
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
