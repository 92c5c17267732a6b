// Package neat provides a Go implementation of the NeuroEvolution of Augmenting Topologies (NEAT) algorithm,
// together with a headless Flappy Bird world used to evolve game-playing networks.
//
// NEAT evolves both the weights and the structure of neural networks. Every structural
// change is stamped with an innovation number from a shared registry so that genomes can
// be aligned for crossover and compared for speciation. Species share fitness and are
// culled when they stagnate.
//
// The module is split into:
//
//	neat         genomes, mutation, crossover, speciation, reproduction and the generation loop
//	neat/nn      the phenotype network (feed-forward or recurrent) and the environment interface
//	neat/store   SQLite persistence of runs, genomes, checkpoints and statistics
//	flappy       the Flappy Bird world and its fitness environment
//
// Basic usage:
//
//	config, err := neat.LoadConfig("configs/flappy-config")
//	if err != nil {
//		log.Fatalf("Error loading config: %v", err)
//	}
//
//	pop, err := neat.NewPopulation(config)
//	if err != nil {
//		log.Fatalf("Error creating population: %v", err)
//	}
//
//	env := flappy.NewEnvironment(nil, nil)
//	winner, err := pop.Run(ctx, nn.FitnessFunc(env, nn.Episode{Seed: 1}))
//	if err != nil {
//		log.Fatalf("Error running evolution: %v", err)
//	}
//	neat.SaveGenome(winner, "winner.json")
package neat
